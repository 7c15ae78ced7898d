package secrets

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		path    string
		want    string
		wantErr bool
	}{
		{name: "trims whitespace", data: []byte("  ghp_abc\n"), want: "ghp_abc"},
		{name: "empty file", data: []byte("\n\n"), wantErr: true},
		{name: "empty path", path: "-", wantErr: true},
		{name: "missing file", path: "/nonexistent/secret", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path
			switch path {
			case "":
				path = writeFile(t, "secret", tt.data)
			case "-":
				path = ""
			}

			got, err := LoadFromFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Errorf("LoadFromFile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadToken(t *testing.T) {
	path := writeFile(t, "token", []byte("ghp_token\n"))

	got, err := LoadToken(path)
	if err != nil {
		t.Fatalf("LoadToken() error = %v", err)
	}
	if got != "ghp_token" {
		t.Errorf("LoadToken() = %q, want %q", got, "ghp_token")
	}
}

func TestLoadRSAPrivateKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	t.Run("valid key", func(t *testing.T) {
		path := writeFile(t, "app.pem", pemBytes)
		got, err := LoadRSAPrivateKey(path)
		if err != nil {
			t.Fatalf("LoadRSAPrivateKey() error = %v", err)
		}
		if len(got) == 0 {
			t.Fatal("LoadRSAPrivateKey() returned no data")
		}
	})

	t.Run("not a key", func(t *testing.T) {
		path := writeFile(t, "app.pem", []byte("not a pem"))
		if _, err := LoadRSAPrivateKey(path); err == nil {
			t.Fatal("LoadRSAPrivateKey() expected error for invalid key")
		}
	})
}
