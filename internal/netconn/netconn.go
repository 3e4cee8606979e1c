// Package netconn owns the TCP connection to the RPKI cache: address
// resolution across families, the connect timeout, and the optional raw
// wire capture tap.
package netconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// ConnectTimeout bounds a single TCP connect attempt.
const ConnectTimeout = 5 * time.Second

// ErrResolutionFailed marks a DNS lookup failure. It is treated as fatal
// to the whole process rather than a transient, retryable error.
var ErrResolutionFailed = errors.New("dns resolution failed")

// Conn wraps a dialed TCP connection with logging and an optional raw
// capture tap, so every byte received can be mirrored to a file for
// offline protocol debugging. Sent bytes are not captured.
type Conn struct {
	conn    net.Conn
	logger  *zap.SugaredLogger
	remote  string
	capture io.Writer
}

// Dial resolves host across whatever address families the resolver
// returns and connects to the first one that accepts a TCP connection
// within ConnectTimeout.
func Dial(ctx context.Context, host, port string, logger *zap.SugaredLogger) (*Conn, error) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("netconn: resolve %s: %w: %w", host, ErrResolutionFailed, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("netconn: no addresses found for %s", host)
	}

	dialer := net.Dialer{Timeout: ConnectTimeout}
	var lastErr error
	for _, addr := range addrs {
		target := net.JoinHostPort(addr, port)
		conn, err := dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			logger.Debugw("dial attempt failed", "address", target, "error", err)
			lastErr = err
			continue
		}
		logger.Infow("connected", "host", host, "address", target)
		return &Conn{conn: conn, logger: logger, remote: conn.RemoteAddr().String()}, nil
	}
	return nil, fmt.Errorf("netconn: could not connect to any address for %s: %w", host, lastErr)
}

// SetCapture installs a writer that receives a copy of every byte received,
// for raw-capture debugging. Pass nil to disable.
func (c *Conn) SetCapture(w io.Writer) {
	c.capture = w
}

// RemoteAddr returns the peer address string, used in log fields.
func (c *Conn) RemoteAddr() string {
	return c.remote
}

// Send writes data to the connection in full. Outbound bytes are not
// mirrored to the capture tap: the capture file is a record of what the
// cache sent, not a full-duplex wire trace.
func (c *Conn) Send(data []byte) error {
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("netconn: send: %w", err)
	}
	return nil
}

// Recv reads whatever is currently available into buf, returning the
// number of bytes read. It blocks until at least one byte arrives or the
// connection fails.
func (c *Conn) Recv(buf []byte) (int, error) {
	n, err := c.conn.Read(buf)
	if n > 0 && c.capture != nil {
		_, _ = c.capture.Write(buf[:n])
	}
	if err != nil {
		return n, fmt.Errorf("netconn: recv: %w", err)
	}
	return n, nil
}

// SetReadDeadline bounds the next Recv call, giving the driver a
// "readable with timeout" wait. A zero time.Time clears it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
