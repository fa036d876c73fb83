package discovery

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestResolverBrowse(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceName, MockService("a", 7340, net.ParseIP("192.168.1.10"), testTXT))
	mock.RegisterService(ServiceName, MockService("b", 7341, net.ParseIP("fd00::1"), ServiceTXT{Version: 1}))
	mock.RegisterService("_other._tcp", MockService("c", 1, net.ParseIP("10.0.0.1"), ServiceTXT{Version: 1}))

	r, err := NewResolver(ResolverConfig{MDNSResolver: mock, Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}

	found, err := r.Browse(context.Background())
	if err != nil {
		t.Fatalf("Browse() error: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("Browse() found %d services, want 2", len(found))
	}
	if found[0].Addr() != "192.168.1.10:7340" {
		t.Errorf("Addr() = %q", found[0].Addr())
	}
	if found[1].Addr() != "[fd00::1]:7341" {
		t.Errorf("Addr() = %q", found[1].Addr())
	}
	if found[0].TXT == nil || found[0].TXT.Vendor != "Acme" || len(found[0].TXT.Libraries) != 2 {
		t.Errorf("TXT = %+v", found[0].TXT)
	}
}

func TestResolverLookup(t *testing.T) {
	mock := NewMockMDNSResolver()
	mock.RegisterService(ServiceName, MockService("a", 7340, net.ParseIP("192.168.1.10"), testTXT))
	r, _ := NewResolver(ResolverConfig{MDNSResolver: mock, Timeout: 50 * time.Millisecond})

	svc, err := r.Lookup(context.Background(), "a")
	if err != nil {
		t.Fatalf("Lookup() error: %v", err)
	}
	if svc.InstanceName != "a" || svc.TXT.Fingerprint != testTXT.Fingerprint {
		t.Errorf("Lookup() = %+v", svc)
	}

	if _, err := r.Lookup(context.Background(), "missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Errorf("Lookup(missing) error = %v", err)
	}
}

// silentResolver never answers and returns when ctx ends.
type silentResolver struct{}

func (silentResolver) Browse(ctx context.Context, _, _ string, _ chan<- *zeroconf.ServiceEntry) error {
	<-ctx.Done()
	return ctx.Err()
}

func (silentResolver) Lookup(ctx context.Context, _, _, _ string, _ chan<- *zeroconf.ServiceEntry) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestResolverTimeout(t *testing.T) {
	r, _ := NewResolver(ResolverConfig{MDNSResolver: silentResolver{}, Timeout: 20 * time.Millisecond})

	if _, err := r.Lookup(context.Background(), "a"); !errors.Is(err, ErrTimeout) {
		t.Errorf("Lookup() error = %v, want ErrTimeout", err)
	}
	found, err := r.Browse(context.Background())
	if err != nil || len(found) != 0 {
		t.Errorf("Browse() = %v, %v; want nothing and no error", found, err)
	}
}

func TestParseServiceTXT(t *testing.T) {
	got, err := ParseServiceTXT(testTXT.Encode())
	if err != nil {
		t.Fatalf("ParseServiceTXT() error: %v", err)
	}
	if got.Version != 1 || got.Vendor != "Acme" || strings.Join(got.Libraries, ",") != "Lib,Other" {
		t.Errorf("ParseServiceTXT() = %+v", got)
	}

	bad := [][]string{
		{},
		{"V=x"},
		{"V=1", "FP=abc"},
		{"V=0"},
	}
	for _, records := range bad {
		if _, err := ParseServiceTXT(records); !errors.Is(err, ErrInvalidTXTRecord) {
			t.Errorf("ParseServiceTXT(%v) error = %v", records, err)
		}
	}
}

func TestSortIPsByPreference(t *testing.T) {
	in := []net.IP{
		net.ParseIP("::1"),
		net.ParseIP("fe80::1"),
		net.ParseIP("fd00::2"),
		net.ParseIP("192.168.0.5"),
	}
	got := SortIPsByPreference(in)
	want := []string{"192.168.0.5", "fd00::2", "fe80::1", "::1"}
	for i, w := range want {
		if got[i].String() != w {
			t.Errorf("position %d = %s, want %s", i, got[i], w)
		}
	}
	if in[0].String() != "::1" {
		t.Error("input slice was reordered")
	}
	if n := len(FilterIPv4(in)); n != 1 {
		t.Errorf("FilterIPv4() = %d addresses", n)
	}
	if n := len(FilterIPv6(in)); n != 3 {
		t.Errorf("FilterIPv6() = %d addresses", n)
	}
}
