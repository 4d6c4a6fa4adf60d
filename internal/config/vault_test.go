package config

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func vaultServer(t *testing.T, path string, data map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/"+path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Vault-Token") != "test-token" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	t.Cleanup(server.Close)
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")
	t.Setenv("VAULT_NAMESPACE", "")
	return server
}

func TestResolveVault_KV2(t *testing.T) {
	vaultServer(t, "secret/data/tabledoc", map[string]any{
		"data": map[string]any{"dsn": "postgres://docs@db/catalog"},
	})

	val, err := resolveVault("secret/data/tabledoc#dsn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "postgres://docs@db/catalog" {
		t.Errorf("got %q", val)
	}
}

func TestResolveVault_KV1(t *testing.T) {
	vaultServer(t, "kv/tabledoc", map[string]any{"mongodb_uri": "mongodb://mongo:27017"})

	val, err := resolveVault("kv/tabledoc#mongodb_uri")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "mongodb://mongo:27017" {
		t.Errorf("got %q", val)
	}
}

func TestResolveVault_Namespace(t *testing.T) {
	var gotNamespace string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotNamespace = r.Header.Get("X-Vault-Namespace")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"k": "v"}})
	}))
	defer server.Close()
	t.Setenv("VAULT_ADDR", server.URL)
	t.Setenv("VAULT_TOKEN", "test-token")
	t.Setenv("VAULT_NAMESPACE", "docs-team")

	if _, err := resolveVault("kv/x#k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotNamespace != "docs-team" {
		t.Errorf("namespace header = %q", gotNamespace)
	}
}

func TestResolveVault_MissingKey(t *testing.T) {
	vaultServer(t, "secret/data/tabledoc", map[string]any{
		"data": map[string]any{"username": "admin"},
	})
	if _, err := resolveVault("secret/data/tabledoc#nonexistent"); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestResolveVault_InvalidFormat(t *testing.T) {
	t.Setenv("VAULT_ADDR", "http://localhost:8200")
	t.Setenv("VAULT_TOKEN", "test-token")

	for _, ref := range []string{"no-hash-separator", "#key", "path#"} {
		if _, err := resolveVault(ref); err == nil {
			t.Errorf("expected error for %q", ref)
		}
	}
}

func TestResolveVault_MissingEnv(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	t.Setenv("VAULT_TOKEN", "")

	if _, err := resolveVault("secret/data/path#key"); err == nil {
		t.Error("expected error when VAULT_ADDR not set")
	}
}

func TestResolveValue_Vault(t *testing.T) {
	vaultServer(t, "secret/data/tabledoc", map[string]any{
		"data": map[string]any{"db_pass": "hunter2"},
	})

	val, err := ResolveValue("${VAULT:secret/data/tabledoc#db_pass}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hunter2" {
		t.Errorf("expected 'hunter2', got %q", val)
	}
}
