package transport

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyNotSOCKS5 is returned when the proxy answers but does not speak SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when the proxy address refuses connections.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the proxy does not answer in time.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")

	// ErrTorNotRunning is returned when a client is requested from a stopped embedded daemon.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)

// ProxyStatus is the result of probing a proxy.
type ProxyStatus int

const (
	// ProxyStatusOK means the proxy completed a SOCKS5 handshake and CONNECT exchange.
	ProxyStatusOK ProxyStatus = iota
	// ProxyStatusWrongType means something answered that is not a usable SOCKS5 proxy.
	ProxyStatusWrongType
	// ProxyStatusCannotConnect means no TCP connection could be made.
	ProxyStatusCannotConnect
	// ProxyStatusTimeout means the probe timed out.
	ProxyStatusTimeout
)

// String returns a human-readable status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Err returns the error matching the status, or nil for ProxyStatusOK.
func (s ProxyStatus) Err() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
