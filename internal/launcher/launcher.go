// Package launcher starts the summarization front-end on demand and sends
// callers to it once it accepts connections.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultTimeoutSeconds = 10
	defaultStopGrace      = 5 * time.Second
	pollInterval          = time.Second
)

// ErrStartupTimeout is returned when the dependent service did not accept a
// connection within the poll budget.
var ErrStartupTimeout = errors.New("launcher: dependent service did not become reachable")

type Config struct {
	// ProbeHost and Port locate the dependent service for readiness probes.
	ProbeHost string
	Port      int
	// PublicHost is the host callers are redirected to.
	PublicHost string
	// TimeoutSeconds is the number of one-second polls after a spawn.
	TimeoutSeconds int
	// StopGrace is how long a child gets to exit after an interrupt.
	StopGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProbeHost == "" {
		c.ProbeHost = "localhost"
	}
	if c.PublicHost == "" {
		c.PublicHost = c.ProbeHost
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaultStopGrace
	}
	return c
}

type Launcher struct {
	cfg     Config
	prober  Prober
	spawner Spawner
	sleep   func(ctx context.Context, d time.Duration) error

	starts singleflight.Group

	mu       sync.Mutex
	children []Process
}

type Option func(*Launcher)

// WithSleep replaces the wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Launcher) {
		l.sleep = sleep
	}
}

func New(cfg Config, prober Prober, spawner Spawner, opts ...Option) (*Launcher, error) {
	if prober == nil {
		return nil, errors.New("launcher: prober must not be nil")
	}
	if spawner == nil {
		return nil, errors.New("launcher: spawner must not be nil")
	}
	cfg = cfg.withDefaults()
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("launcher: invalid port %d", cfg.Port)
	}
	l := &Launcher{
		cfg:     cfg,
		prober:  prober,
		spawner: spawner,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// TargetURL is where callers are redirected once the service is up.
func (l *Launcher) TargetURL() string {
	return "http://" + net.JoinHostPort(l.cfg.PublicHost, strconv.Itoa(l.cfg.Port)) + "/"
}

// EnsureStarted makes sure the dependent service accepts connections,
// spawning it when the first probe is refused. Concurrent callers share one
// probe-then-spawn sequence. A caller whose ctx ends stops waiting; the
// sequence itself runs to completion for the others.
func (l *Launcher) EnsureStarted(ctx context.Context) error {
	ch := l.starts.DoChan("start", func() (_ any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("launcher: start panicked: %v", p)
			}
		}()
		return nil, l.ensureStarted(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Launcher) ensureStarted(ctx context.Context) error {
	up, err := l.prober.Probe(ctx, l.cfg.ProbeHost, l.cfg.Port)
	if err != nil {
		return err
	}
	if up {
		return nil
	}

	proc, err := l.spawner.Spawn()
	if err != nil {
		return fmt.Errorf("launcher: spawn: %w", err)
	}
	l.track(proc)
	slog.Info("spawned dependent service", "pid", proc.Pid(), "port", l.cfg.Port)

	for attempt := 1; attempt <= l.cfg.TimeoutSeconds; attempt++ {
		up, err := l.prober.Probe(ctx, l.cfg.ProbeHost, l.cfg.Port)
		if err != nil {
			return err
		}
		if up {
			slog.Info("dependent service reachable", "pid", proc.Pid(), "attempts", attempt)
			return nil
		}
		if err := l.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}

	slog.Warn("dependent service startup timed out; stopping it",
		"pid", proc.Pid(), "timeout_seconds", l.cfg.TimeoutSeconds)
	if err := proc.Stop(l.cfg.StopGrace); err != nil {
		slog.Error("failed to stop dependent service", "pid", proc.Pid(), "err", err)
	}
	return ErrStartupTimeout
}

func (l *Launcher) track(p Process) {
	l.mu.Lock()
	defer l.mu.Unlock()

	live := l.children[:0]
	for _, c := range l.children {
		select {
		case <-c.Done():
		default:
			live = append(live, c)
		}
	}
	l.children = append(live, p)
}

// StopSpawned stops every child this launcher started that is still running.
func (l *Launcher) StopSpawned() error {
	l.mu.Lock()
	children := l.children
	l.children = nil
	l.mu.Unlock()

	var errs []error
	for _, c := range children {
		if err := c.Stop(l.cfg.StopGrace); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
