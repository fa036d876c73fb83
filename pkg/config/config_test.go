package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/backkem/mlle/pkg/keymask"
	"github.com/pion/logging"
)

const testSecretHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen.Addr != ":7340" || cfg.Listen.HandshakeTimeout != 10*time.Second {
		t.Errorf("Listen = %+v", cfg.Listen)
	}
	if cfg.License.Backend != "dummy" || cfg.Log.Level != "info" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.HasSecret() {
		t.Error("HasSecret() = true without a key source")
	}
	if _, err := cfg.SecretProvider(); !errors.Is(err, ErrNoSecret) {
		t.Errorf("SecretProvider() error = %v, want ErrNoSecret", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "mlle.yaml", `
listen:
  addr: "127.0.0.1:9000"
  handshake_timeout: 3s
library:
  base_dir: /srv/libs
  secret: "`+testSecretHex+`"
license:
  backend: static
  features:
    sim: 2
    export: 0
  global_feature: sim
admin:
  addr: "127.0.0.1:9090"
log:
  level: debug
`)
	t.Setenv("MLLE_LISTEN_ADDR", "127.0.0.1:9100")
	t.Setenv("MLLE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Listen.Addr != "127.0.0.1:9100" {
		t.Errorf("env did not override file: Addr = %q", cfg.Listen.Addr)
	}
	if cfg.Listen.HandshakeTimeout != 3*time.Second {
		t.Errorf("HandshakeTimeout = %v", cfg.Listen.HandshakeTimeout)
	}
	if cfg.Listen.AcceptRate != 50 {
		t.Errorf("default lost under file overlay: AcceptRate = %v", cfg.Listen.AcceptRate)
	}
	if cfg.Log.Level != "warn" || cfg.Library.BaseDir != "/srv/libs" || cfg.License.Features["sim"] != 2 {
		t.Errorf("cfg = %+v", cfg)
	}

	secret, err := cfg.SecretProvider()
	if err != nil {
		t.Fatalf("SecretProvider() error: %v", err)
	}
	key, err := secret.LibraryKey(context.Background())
	if err != nil {
		t.Fatalf("LibraryKey() error: %v", err)
	}
	if key[31] != 0x1f {
		t.Errorf("key = %x", key)
	}

	factory, err := cfg.LicenseFactory()
	if err != nil {
		t.Fatalf("LicenseFactory() error: %v", err)
	}
	backend, err := factory("/srv/libs/Lib")
	if err != nil {
		t.Fatalf("factory() error: %v", err)
	}
	defer backend.Close()
	if ok, _, err := backend.CheckoutFeature(context.Background(), "sim"); err != nil || !ok {
		t.Errorf("CheckoutFeature(sim) = %t, %v", ok, err)
	}
}

func TestLoadEnvList(t *testing.T) {
	fp := strings.Repeat("ab", 32)
	t.Setenv("MLLE_AUTH_FINGERPRINTS", fp+","+strings.Repeat("CD", 32))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	list, err := cfg.Authorizer()
	if err != nil {
		t.Fatalf("Authorizer() error: %v", err)
	}
	if list.Len() != 2 {
		t.Errorf("Len() = %d, want 2", list.Len())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "listen:\n  adress: x\n"},
		{"bad addr", "listen:\n  addr: nope\n"},
		{"short secret", "library:\n  secret: abcd\n"},
		{"two secrets", "library:\n  secret: " + testSecretHex + "\n  passphrase: pw\n  salt: 00ff\n"},
		{"passphrase without salt", "library:\n  passphrase: pw\n"},
		{"bad backend", "license:\n  backend: flexlm\n"},
		{"negative seats", "license:\n  features:\n    a: -1\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad fingerprint", "auth:\n  fingerprints: [\"zz\"]\n"},
		{"allow any with list", "auth:\n  allow_any: true\n  fingerprints: [\"" + strings.Repeat("ab", 32) + "\"]\n"},
		{"half identity", "listen:\n  cert_file: lve.pem\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "mlle.yaml", tc.yaml))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestValidateWrapsErrInvalid(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "loud"
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate() error = %v, want ErrInvalid", err)
	}
	if !strings.Contains(err.Error(), "Log.Level failed oneof") {
		t.Errorf("Validate() message = %q", err.Error())
	}
}

func TestSecretSources(t *testing.T) {
	ctx := context.Background()

	cfg := Default()
	cfg.Library.SecretFile = writeFile(t, "key.hex", testSecretHex+"\n")
	s, err := cfg.SecretProvider()
	if err != nil {
		t.Fatalf("SecretProvider(file) error: %v", err)
	}
	if _, ok := s.(keymask.StaticSecret); !ok {
		t.Errorf("SecretProvider(file) = %T", s)
	}

	cfg = Default()
	cfg.Library.Passphrase = "correct horse"
	cfg.Library.Salt = "00112233"
	s, err = cfg.SecretProvider()
	if err != nil {
		t.Fatalf("SecretProvider(passphrase) error: %v", err)
	}
	k1, err := s.LibraryKey(ctx)
	if err != nil {
		t.Fatalf("LibraryKey() error: %v", err)
	}
	k2, _ := s.LibraryKey(ctx)
	if k1 != k2 {
		t.Error("passphrase key is not deterministic")
	}
}

func TestAuthorizerFile(t *testing.T) {
	cfg := Default()
	cfg.Auth.AllowListFile = writeFile(t, "tools.txt", "# tools\n"+strings.Repeat("01", 32)+"\n")
	cfg.Auth.Fingerprints = []string{strings.Repeat("02", 32)}

	list, err := cfg.Authorizer()
	if err != nil {
		t.Fatalf("Authorizer() error: %v", err)
	}
	if list.Len() != 2 {
		t.Errorf("Len() = %d, want 2", list.Len())
	}

	cfg = Default()
	cfg.Auth.AllowAny = true
	list, err = cfg.Authorizer()
	if err != nil {
		t.Fatalf("Authorizer() error: %v", err)
	}
	if err := list.Authorize(nil); err != nil {
		t.Errorf("AllowAny Authorize() error: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logging.LogLevel{
		"disable": logging.LogLevelDisabled,
		"ERROR":   logging.LogLevelError,
		"warn":    logging.LogLevelWarn,
		"info":    logging.LogLevelInfo,
		"debug":   logging.LogLevelDebug,
		"trace":   logging.LogLevelTrace,
		"other":   logging.LogLevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	cfg := Default()
	cfg.Log.Level = "debug"
	if lf := cfg.LoggerFactory(); lf.DefaultLogLevel != logging.LogLevelDebug {
		t.Errorf("LoggerFactory level = %v", lf.DefaultLogLevel)
	}
}
