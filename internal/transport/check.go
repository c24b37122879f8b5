package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// checkProxyTimeout bounds a proxy probe.
const checkProxyTimeout = 2 * time.Second

const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5ProbeHost is a reserved name (RFC 2606); the probe only needs a
	// reply to the CONNECT request, not a working connection.
	socks5ProbeHost = "example.invalid"
)

// CheckProxy probes address with a SOCKS5 greeting and a CONNECT request.
// Any well-formed CONNECT reply, success or failure, counts as OK.
func CheckProxy(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readFailure(err)
	}
	if authResp[0] != socks5Version || authResp[1] == socks5AuthNoAccept || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrTypeDomID, byte(len(socks5ProbeHost))}
	req = append(req, socks5ProbeHost...)
	req = append(req, 0x00, 80)
	if _, err := conn.Write(req); err != nil {
		return ProxyStatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readFailure(err)
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func readFailure(err error) ProxyStatus {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ProxyStatusTimeout
	}
	return ProxyStatusWrongType
}
