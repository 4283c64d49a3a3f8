package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vango-go/mensetsu/pkg/core"
)

func TestMintCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_test_123"},"expires_at":0}`))
	}))
	defer srv.Close()

	secret, err := NewCredentialClient(srv.URL).MintCredential(context.Background())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if secret != "ek_test_123" {
		t.Fatalf("secret=%q", secret)
	}
}

func TestMintCredentialMissingSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	_, err := NewCredentialClient(srv.URL).MintCredential(context.Background())
	if !core.IsType(err, core.ErrCredentialUnavailable) {
		t.Fatalf("err=%v, want credential_unavailable_error", err)
	}
}

func TestMintCredentialServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewCredentialClient(srv.URL).MintCredential(context.Background())
	if !core.IsType(err, core.ErrCredentialUnavailable) {
		t.Fatalf("err=%v, want credential_unavailable_error", err)
	}
}

func TestMintCredentialUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewCredentialClient(srv.URL).MintCredential(context.Background())
	if !core.IsType(err, core.ErrCredentialUnavailable) {
		t.Fatalf("err=%v, want credential_unavailable_error", err)
	}
}
