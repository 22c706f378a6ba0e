package security

import (
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildWithoutSettings(t *testing.T) {
	cfg, err := TLSConfig{}.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatal("expected nil tls.Config for empty settings")
	}
}

func TestValidate(t *testing.T) {
	if err := (TLSConfig{CertFile: "client.pem"}).Validate(); err == nil {
		t.Error("expected error for cert without key")
	}
	if err := (TLSConfig{KeyFile: "client.key"}).Validate(); err == nil {
		t.Error("expected error for key without cert")
	}
	if err := (TLSConfig{CertFile: "a", KeyFile: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	if err := os.WriteFile(garbage, []byte("not a certificate"), 0o600); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		cfg  TLSConfig
		want string
	}{
		{"missing ca", TLSConfig{CAFile: filepath.Join(dir, "absent.pem")}, "read ca_file"},
		{"bad ca", TLSConfig{CAFile: garbage}, "no certificates"},
		{"bad pair", TLSConfig{CertFile: garbage, KeyFile: garbage}, "load client certificate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.cfg.Build()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want it to contain %q", err, tc.want)
			}
		})
	}
}

func TestHTTPClientTrustsCAFile(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	caFile := filepath.Join(t.TempDir(), "ca.pem")
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(caFile, block, 0o600); err != nil {
		t.Fatal(err)
	}

	plain, err := TLSConfig{}.HTTPClient(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := plain.Get(srv.URL); err == nil {
		t.Fatal("expected the system pool to reject the test certificate")
	}

	client, err := TLSConfig{CAFile: caFile}.HTTPClient(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", client.Timeout)
	}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request with ca_file failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
