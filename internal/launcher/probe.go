package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

const probeDialTimeout = 2 * time.Second

type Prober interface {
	Probe(ctx context.Context, host string, port int) (bool, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, host string, port int) (bool, error)

func (f ProberFunc) Probe(ctx context.Context, host string, port int) (bool, error) {
	return f(ctx, host, port)
}

// TCPProbe reports whether something accepts TCP connections on host:port.
// A refused connection means "not running"; any other dial failure is
// returned to the caller.
func TCPProbe(ctx context.Context, host string, port int) (bool, error) {
	d := net.Dialer{Timeout: probeDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return false, nil
		}
		return false, fmt.Errorf("launcher: probe %s:%d: %w", host, port, err)
	}
	_ = conn.Close()
	return true, nil
}
