package transport

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"golang.org/x/time/rate"
)

func echoHandler(ctx context.Context, ch Channel) {
	io.Copy(ch, ch)
}

func TestNewListener(t *testing.T) {
	if _, err := NewListener(ListenerConfig{}); err != ErrNoHandler {
		t.Errorf("NewListener() without handler error = %v, want ErrNoHandler", err)
	}

	l, err := NewListener(ListenerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    echoHandler,
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}
	defer l.Stop()

	if l.Addr() == nil {
		t.Error("Addr() returned nil")
	}
}

func TestListenerStartStop(t *testing.T) {
	l, err := NewListener(ListenerConfig{
		ListenAddr:    "127.0.0.1:0",
		Handler:       echoHandler,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := l.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if err := l.Stop(); err != ErrClosed {
		t.Errorf("second Stop() error = %v, want ErrClosed", err)
	}
	if err := l.Start(context.Background()); err != ErrClosed {
		t.Errorf("Start() after Stop error = %v, want ErrClosed", err)
	}
}

func TestListenerPlainEcho(t *testing.T) {
	l, err := NewListener(ListenerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    echoHandler,
		Limiter:    rate.NewLimiter(rate.Inf, 1),
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer l.Stop()

	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := conn.Write([]byte("TOOLS\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	buf := make([]byte, 6)
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(buf) != "TOOLS\n" {
		t.Errorf("echo = %q", buf)
	}
	if n := l.ActiveConnections(); n != 1 {
		t.Errorf("ActiveConnections() = %d, want 1", n)
	}
}

func TestListenerContextCancel(t *testing.T) {
	l, err := NewListener(ListenerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    echoHandler,
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, err := net.DialTimeout("tcp", l.Addr().String(), 50*time.Millisecond); err != nil {
			l.Stop()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	l.Stop()
	t.Error("listener still accepting after context cancel")
}

func TestListenerOverPipe(t *testing.T) {
	p := NewPipe()
	defer p.Close()

	got := make(chan Channel, 1)
	l, err := NewListener(ListenerConfig{
		Listener: p.Listener(),
		Handler: func(ctx context.Context, ch Channel) {
			got <- ch
			<-ctx.Done()
		},
	})
	if err != nil {
		t.Fatalf("NewListener() error: %v", err)
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	select {
	case ch := <-got:
		if ch.Type() != ChannelTypePlain {
			t.Errorf("Type() = %v, want Plain", ch.Type())
		}
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	if err := l.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}
