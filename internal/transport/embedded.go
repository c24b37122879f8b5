package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultTorStartupTimeout is how long the embedded daemon may take to bootstrap.
const DefaultTorStartupTimeout = 3 * time.Minute

// EmbeddedTor runs a private Tor daemon whose SOCKS port the crawler can use
// as its proxy.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	socksAddr      string
	startupTimeout time.Duration
}

// EmbeddedTorOption configures an EmbeddedTor.
type EmbeddedTorOption func(*EmbeddedTor)

// WithStartupTimeout sets the bootstrap timeout.
func WithStartupTimeout(timeout time.Duration) EmbeddedTorOption {
	return func(e *EmbeddedTor) {
		if timeout > 0 {
			e.startupTimeout = timeout
		}
	}
}

// NewEmbeddedTor returns a stopped daemon manager. Call Start to launch it.
func NewEmbeddedTor(opts ...EmbeddedTorOption) *EmbeddedTor {
	e := &EmbeddedTor{startupTimeout: DefaultTorStartupTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the daemon on OS-assigned ports and blocks until it has
// bootstrapped. It usually takes between one and three minutes.
func (e *EmbeddedTor) Start(ctx context.Context) error {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	e.process = process
	e.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. It is a no-op when the daemon is not running.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	err := e.process.Stop()
	e.process = nil
	e.socksAddr = ""
	return err
}

// SocksAddr returns the daemon's SOCKS5 address, or "" when it is not running.
func (e *EmbeddedTor) SocksAddr() string {
	return e.socksAddr
}

// IsRunning reports whether the daemon has been started and not stopped.
func (e *EmbeddedTor) IsRunning() bool {
	return e.process != nil
}

// NewHTTPClient returns a client routed through the running daemon.
func (e *EmbeddedTor) NewHTTPClient(opts Options) (*http.Client, error) {
	if !e.IsRunning() {
		return nil, ErrTorNotRunning
	}
	opts.ProxyAddress = e.socksAddr
	return NewHTTPClient(opts)
}
