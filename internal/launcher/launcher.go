// Package launcher starts the DevMind services as child processes, waits
// for each to listen on its port, and stops them all on shutdown.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/logging"
)

const (
	DefaultStartupTimeout = 30 * time.Second
	DefaultPollInterval   = time.Second
	DefaultStopGrace      = 5 * time.Second
)

var (
	ErrPortInUse      = errors.New("port already in use")
	ErrStartupTimeout = errors.New("service did not start listening in time")
	ErrNoCommand      = errors.New("service has no command")
)

// Options tune a Launcher.
type Options struct {
	StartupTimeout time.Duration
	PollInterval   time.Duration
	StopGrace      time.Duration
	// AllowBusyPorts starts services even when their port is taken.
	AllowBusyPorts bool
	Host           string
	Logger         *slog.Logger
}

// Launcher supervises a fixed list of services.
type Launcher struct {
	services []config.ServiceConfig
	opts     Options
	log      *slog.Logger

	mu      sync.Mutex
	running []*Running
}

// Running is a started service.
type Running struct {
	Service config.ServiceConfig
	cmd     *exec.Cmd
	proc    *process.Process
	done    chan struct{}
	err     error
}

// PID returns the child's process id.
func (r *Running) PID() int32 { return r.proc.Pid }

// Done is closed when the process exits.
func (r *Running) Done() <-chan struct{} { return r.done }

// New returns a Launcher for services.
func New(services []config.ServiceConfig, opts Options) *Launcher {
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = DefaultStartupTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = DefaultStopGrace
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	return &Launcher{
		services: services,
		opts:     opts,
		log:      logging.OrDefault(opts.Logger).With("component", "launcher"),
	}
}

// Check verifies service directories and port availability before
// anything is started.
func (l *Launcher) Check() error {
	for _, svc := range l.services {
		if len(svc.Command) == 0 {
			return fmt.Errorf("%s: %w", svc.Name, ErrNoCommand)
		}
		if svc.Dir != "" {
			if info, err := os.Stat(svc.Dir); err != nil || !info.IsDir() {
				return fmt.Errorf("%s: directory %s not found", svc.Name, svc.Dir)
			}
		}
		if svc.Port <= 0 {
			continue
		}
		if PortInUse(l.opts.Host, svc.Port) {
			if !l.opts.AllowBusyPorts {
				return fmt.Errorf("%s: %w: %d", svc.Name, ErrPortInUse, svc.Port)
			}
			l.log.Warn("port already in use, continuing", "service", svc.Name, "port", svc.Port)
			continue
		}
		l.log.Info("port available", "service", svc.Name, "port", svc.Port)
	}
	return nil
}

// Start launches every service in order, waiting for each port before
// starting the next. On failure the services already started are stopped.
func (l *Launcher) Start(ctx context.Context) error {
	if err := l.Check(); err != nil {
		return err
	}
	for _, svc := range l.services {
		r, err := l.start(svc)
		if err != nil {
			l.Stop()
			return err
		}
		if svc.Port > 0 {
			if err := WaitForPort(ctx, l.opts.Host, svc.Port, l.opts.StartupTimeout, l.opts.PollInterval, r.done); err != nil {
				l.Stop()
				return fmt.Errorf("%s: %w", svc.Name, err)
			}
			l.log.Info("service running", "service", svc.Name, "port", svc.Port, "pid", r.PID())
		}
	}
	return nil
}

func (l *Launcher) start(svc config.ServiceConfig) (*Running, error) {
	if len(svc.Command) == 0 {
		return nil, fmt.Errorf("%s: %w", svc.Name, ErrNoCommand)
	}
	cmd := exec.Command(svc.Command[0], svc.Command[1:]...)
	cmd.Dir = svc.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	for k, v := range svc.Env {
		cmd.Env = append(cmd.Env, strings.ToUpper(k)+"="+v)
	}

	l.log.Info("starting service", "service", svc.Name, "command", strings.Join(svc.Command, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", svc.Name, err)
	}
	proc, err := process.NewProcess(int32(cmd.Process.Pid))
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("tracking %s: %w", svc.Name, err)
	}

	r := &Running{Service: svc, cmd: cmd, proc: proc, done: make(chan struct{})}
	go func() {
		r.err = cmd.Wait()
		close(r.done)
		l.log.Info("service exited", "service", svc.Name, "pid", proc.Pid, "err", r.err)
	}()

	l.mu.Lock()
	l.running = append(l.running, r)
	l.mu.Unlock()
	return r, nil
}

// Running returns the started services.
func (l *Launcher) Running() []*Running {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Running(nil), l.running...)
}

// Stop terminates every started service in reverse order, children
// first, killing whatever outlives the grace period.
func (l *Launcher) Stop() {
	l.mu.Lock()
	running := l.running
	l.running = nil
	l.mu.Unlock()

	for i := len(running) - 1; i >= 0; i-- {
		l.terminate(running[i])
	}
}

func (l *Launcher) terminate(r *Running) {
	select {
	case <-r.done:
		return
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.opts.StopGrace)
	defer cancel()

	children, _ := r.proc.ChildrenWithContext(ctx)
	for _, c := range children {
		_ = c.TerminateWithContext(ctx)
	}
	if err := r.proc.TerminateWithContext(ctx); err != nil {
		l.log.Warn("terminate failed", "service", r.Service.Name, "pid", r.proc.Pid, "err", err)
	}
	l.log.Info("terminated service", "service", r.Service.Name, "pid", r.proc.Pid)

	select {
	case <-r.done:
		return
	case <-ctx.Done():
	}
	l.log.Warn("service ignored terminate, killing", "service", r.Service.Name, "pid", r.proc.Pid)
	for _, c := range children {
		_ = c.Kill()
	}
	_ = r.proc.Kill()
	<-r.done
}

// Wait blocks until ctx is done, then stops everything.
func (l *Launcher) Wait(ctx context.Context) {
	<-ctx.Done()
	l.log.Info("shutting down services")
	l.Stop()
}

// ─── Ports ──────────────────────────────────────────────────────────────────

// PortInUse reports whether host:port cannot be bound.
func PortInUse(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}

// WaitForPort polls until something listens on host:port. It gives up
// after timeout, when ctx ends, or when exited is closed.
func WaitForPort(ctx context.Context, host string, port int, timeout, poll time.Duration, exited <-chan struct{}) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if conn, err := net.DialTimeout("tcp", addr, poll); err == nil {
			_ = conn.Close()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return fmt.Errorf("process exited before listening on %d", port)
		case <-deadline.C:
			return fmt.Errorf("%w: port %d after %s", ErrStartupTimeout, port, timeout)
		case <-ticker.C:
		}
	}
}
