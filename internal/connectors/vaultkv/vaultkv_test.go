package vaultkv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/patchbay-io/patchbay/internal/connector"
)

func writeJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func newConnected(t *testing.T, url string) *VaultKV {
	t.Helper()
	conn, err := Factory(
		map[string]any{"address": url, "mount": "kv"},
		map[string]string{"token": "unit-token"},
	)
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	v := conn.(*VaultKV)
	if err := v.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return v
}

func action(t *testing.T, v *VaultKV, id string) connector.Action {
	t.Helper()
	for _, a := range v.Actions() {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("action %q not found", id)
	return connector.Action{}
}

func TestInitializeValidation(t *testing.T) {
	t.Parallel()

	conn, err := Factory(map[string]any{}, map[string]string{"token": "x"})
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	if err := conn.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize() without address succeeded")
	}

	conn, err = Factory(map[string]any{"address": "http://127.0.0.1:8200"}, map[string]string{})
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	if err := conn.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize() without token succeeded")
	}
}

func TestKVRoundTrip(t *testing.T) {
	t.Parallel()

	var gotToken string
	var putData map[string]any
	deleted := false

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Vault-Token")
		switch {
		case r.URL.Path == "/v1/kv/data/app/db" && r.Method == http.MethodGet:
			writeJSON(t, w, map[string]any{
				"data": map[string]any{
					"data":     map[string]any{"password": "hunter2"},
					"metadata": map[string]any{"version": 3},
				},
			})
		case r.URL.Path == "/v1/kv/data/app/db" && r.Method == http.MethodPut:
			var body struct {
				Data map[string]any `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			putData = body.Data
			writeJSON(t, w, map[string]any{
				"data": map[string]any{"version": 4},
			})
		case r.URL.Path == "/v1/kv/data/app/db" && r.Method == http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	v := newConnected(t, server.URL)
	ctx := context.Background()

	result, err := action(t, v, "kv_get").Execute(ctx, connector.ExecutionContext{}, map[string]any{"path": "app/db"})
	if err != nil {
		t.Fatalf("kv_get error = %v", err)
	}
	if gotToken != "unit-token" {
		t.Fatalf("X-Vault-Token = %q", gotToken)
	}
	data := result.(map[string]any)["data"].(map[string]any)
	if data["password"] != "hunter2" {
		t.Fatalf("data = %v", data)
	}

	_, err = action(t, v, "kv_put").Execute(ctx, connector.ExecutionContext{}, map[string]any{
		"path": "app/db",
		"data": map[string]any{"password": "correct-horse"},
	})
	if err != nil {
		t.Fatalf("kv_put error = %v", err)
	}
	if putData["password"] != "correct-horse" {
		t.Fatalf("put body = %v", putData)
	}

	_, err = action(t, v, "kv_delete").Execute(ctx, connector.ExecutionContext{}, map[string]any{"path": "app/db"})
	if err != nil {
		t.Fatalf("kv_delete error = %v", err)
	}
	if !deleted {
		t.Fatal("delete request never reached the server")
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/sys/health" {
			writeJSON(t, w, map[string]any{"initialized": true, "sealed": false})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	v := newConnected(t, server.URL)
	if !v.TestConnection(context.Background()) {
		t.Fatal("TestConnection() = false against a healthy server")
	}

	uninitialized := &VaultKV{}
	if uninitialized.TestConnection(context.Background()) {
		t.Fatal("TestConnection() = true without a client")
	}
}
