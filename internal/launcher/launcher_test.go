package launcher

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/HendryAvila/devmind/internal/config"
	"github.com/HendryAvila/devmind/internal/logging"
)

// TestMain doubles as the child service: with DEVMIND_HELPER_PORT set the
// test binary listens on that port until terminated.
func TestMain(m *testing.M) {
	if port := os.Getenv("DEVMIND_HELPER_PORT"); port != "" {
		ln, err := net.Listen("tcp", "127.0.0.1:"+port)
		if err != nil {
			os.Exit(3)
		}
		defer ln.Close()
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGTERM, os.Interrupt)
		<-sig
		os.Exit(0)
	}
	if os.Getenv("DEVMIND_HELPER_EXIT") != "" {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testOptions() Options {
	return Options{
		StartupTimeout: 10 * time.Second,
		PollInterval:   20 * time.Millisecond,
		StopGrace:      2 * time.Second,
		Logger:         logging.Discard(),
	}
}

func helperService(name string, port int) config.ServiceConfig {
	return config.ServiceConfig{
		Name:    name,
		Command: []string{os.Args[0]},
		Port:    port,
		Env:     map[string]string{"devmind_helper_port": strconv.Itoa(port)},
	}
}

func TestStartAndStop(t *testing.T) {
	p1, p2 := freePort(t), freePort(t)
	l := New([]config.ServiceConfig{helperService("one", p1), helperService("two", p2)}, testOptions())

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	running := l.Running()
	if len(running) != 2 {
		t.Fatalf("running = %d, want 2", len(running))
	}
	for _, p := range []int{p1, p2} {
		if !PortInUse("127.0.0.1", p) {
			t.Errorf("port %d not in use after Start", p)
		}
	}

	l.Stop()
	for _, r := range running {
		select {
		case <-r.Done():
		case <-time.After(3 * time.Second):
			t.Fatalf("%s still running", r.Service.Name)
		}
		if ok, _ := process.PidExists(r.PID()); ok {
			t.Errorf("pid %d still alive after Stop", r.PID())
		}
	}
	if len(l.Running()) != 0 {
		t.Error("Running not cleared after Stop")
	}
}

func TestCheck_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	l := New([]config.ServiceConfig{helperService("busy", port)}, testOptions())
	if err := l.Check(); !errors.Is(err, ErrPortInUse) {
		t.Errorf("Check = %v, want ErrPortInUse", err)
	}

	opts := testOptions()
	opts.AllowBusyPorts = true
	if err := New([]config.ServiceConfig{helperService("busy", port)}, opts).Check(); err != nil {
		t.Errorf("Check with AllowBusyPorts = %v", err)
	}
}

func TestCheck_Validation(t *testing.T) {
	tests := []struct {
		name string
		svc  config.ServiceConfig
		want error
	}{
		{"no command", config.ServiceConfig{Name: "x"}, ErrNoCommand},
		{"missing dir", config.ServiceConfig{Name: "x", Command: []string{"true"}, Dir: "/does/not/exist"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New([]config.ServiceConfig{tt.svc}, testOptions()).Check()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStart_ChildExitsEarly(t *testing.T) {
	port := freePort(t)
	svc := config.ServiceConfig{
		Name:    "crash",
		Command: []string{os.Args[0]},
		Port:    port,
		Env:     map[string]string{"DEVMIND_HELPER_EXIT": "1"},
	}
	l := New([]config.ServiceConfig{svc}, testOptions())
	start := time.Now()
	if err := l.Start(context.Background()); err == nil {
		t.Fatal("expected error for a service that exits")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Start should fail as soon as the child exits")
	}
}

func TestWaitForPort_Timeout(t *testing.T) {
	port := freePort(t)
	err := WaitForPort(context.Background(), "127.0.0.1", port, 50*time.Millisecond, 10*time.Millisecond, nil)
	if !errors.Is(err, ErrStartupTimeout) {
		t.Errorf("err = %v, want ErrStartupTimeout", err)
	}
}

func TestWait_StopsOnCancel(t *testing.T) {
	port := freePort(t)
	l := New([]config.ServiceConfig{helperService("one", port)}, testOptions())
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r := l.Running()[0]

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Wait(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return")
	}
	select {
	case <-r.Done():
	default:
		t.Error("child still running after Wait returned")
	}
}
