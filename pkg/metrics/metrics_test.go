package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/backkem/mlle/pkg/protocol"
	"github.com/backkem/mlle/pkg/session"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()

	c.SessionStarted(session.Info{ID: "a", Channel: transport.ChannelTypeTLS, Started: time.Now(), Authorized: true})
	c.SessionStarted(session.Info{ID: "b", Channel: transport.ChannelTypeTLS, Started: time.Now(), Authorized: false})
	c.CommandHandled(protocol.CmdFile)
	c.CommandHandled(protocol.CmdFile)
	c.ErrorReplied(protocol.ErrorFileIO)
	c.FileServed(true, 100)
	c.FileServed(false, 20)

	if got := testutil.ToFloat64(c.sessionsActive); got != 2 {
		t.Errorf("sessions_active = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.sessionsTotal.WithLabelValues("TLS", "true")); got != 1 {
		t.Errorf("sessions_total{TLS,true} = %v", got)
	}
	if got := testutil.ToFloat64(c.commands.WithLabelValues("FILE")); got != 2 {
		t.Errorf("commands_total{FILE} = %v", got)
	}
	if got := testutil.ToFloat64(c.errorReplies.WithLabelValues(protocol.ErrorFileIO.String())); got != 1 {
		t.Errorf("error_replies_total = %v", got)
	}
	if got := testutil.ToFloat64(c.bytesServed); got != 120 {
		t.Errorf("served_bytes_total = %v", got)
	}

	c.SessionEnded("a")
	if got := testutil.ToFloat64(c.sessionsActive); got != 1 {
		t.Errorf("sessions_active after end = %v, want 1", got)
	}
	if s := c.Sessions(); len(s) != 1 || s[0].ID != "b" {
		t.Errorf("Sessions() = %+v", s)
	}
}

func TestCollectorSessionsOrder(t *testing.T) {
	c := NewCollector()
	now := time.Now()
	c.SessionStarted(session.Info{ID: "new", Started: now})
	c.SessionStarted(session.Info{ID: "old", Started: now.Add(-time.Minute)})

	s := c.Sessions()
	if len(s) != 2 || s[0].ID != "old" || s[1].ID != "new" {
		t.Errorf("Sessions() order = %+v", s)
	}
}

func TestAdminRoutes(t *testing.T) {
	c := NewCollector()
	c.SessionStarted(session.Info{ID: "s1", Channel: transport.ChannelTypePipe, Started: time.Now(), Authorized: true})
	c.FileServed(true, 5)

	var down atomic.Bool
	a, err := NewAdmin(AdminConfig{Collector: c, Ready: func() error {
		if down.Load() {
			return errors.New("listener down")
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("NewAdmin() error: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := get(t, srv.URL+"/metrics", http.StatusOK)
	for _, want := range []string{"mlle_sessions_active 1", `mlle_files_served_total{encrypted="true"} 1`} {
		if !strings.Contains(body, want) {
			t.Errorf("/metrics missing %q", want)
		}
	}

	var sessions []sessionView
	if err := json.Unmarshal([]byte(get(t, srv.URL+"/sessions", http.StatusOK)), &sessions); err != nil {
		t.Fatalf("decode /sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "s1" || sessions[0].Channel != "Pipe" {
		t.Errorf("/sessions = %+v", sessions)
	}

	var health healthView
	if err := json.Unmarshal([]byte(get(t, srv.URL+"/healthz", http.StatusOK)), &health); err != nil {
		t.Fatalf("decode /healthz: %v", err)
	}
	if health.Status != "ok" || health.Sessions != 1 {
		t.Errorf("/healthz = %+v", health)
	}

	down.Store(true)
	if err := json.Unmarshal([]byte(get(t, srv.URL+"/healthz", http.StatusServiceUnavailable)), &health); err != nil {
		t.Fatalf("decode /healthz: %v", err)
	}
	if health.Status != "unavailable" || health.Error != "listener down" {
		t.Errorf("/healthz = %+v", health)
	}

	get(t, srv.URL+"/nope", http.StatusNotFound)
}

func get(t *testing.T, url string, wantStatus int) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	return string(body)
}

func TestAdminServe(t *testing.T) {
	a, err := NewAdmin(AdminConfig{Collector: NewCollector()})
	if err != nil {
		t.Fatalf("NewAdmin() error: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	get(t, "http://"+ln.Addr().String()+"/healthz", http.StatusOK)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestNewAdminRequiresCollector(t *testing.T) {
	if _, err := NewAdmin(AdminConfig{}); !errors.Is(err, ErrNoCollector) {
		t.Errorf("NewAdmin() error = %v, want ErrNoCollector", err)
	}
}
