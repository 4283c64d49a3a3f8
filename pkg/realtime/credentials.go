package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vango-go/mensetsu/pkg/core"
)

// CredentialProvider mints the short-lived credential used to
// authenticate the peer connection. The core treats it as a black box
// returning a secret string; absence is a hard failure of connect.
type CredentialProvider interface {
	MintCredential(ctx context.Context) (string, error)
}

// CredentialClient fetches an ephemeral client secret from the session
// endpoint.
type CredentialClient struct {
	URL        string
	HTTPClient *http.Client
}

// NewCredentialClient creates a credential client for the given
// session endpoint.
func NewCredentialClient(url string) *CredentialClient {
	return &CredentialClient{
		URL:        url,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionTokenResponse struct {
	ClientSecret struct {
		Value string `json:"value"`
	} `json:"client_secret"`
}

// MintCredential requests a fresh credential. Any transport failure,
// non-2xx status, or empty secret is a credential_unavailable_error.
func (c *CredentialClient) MintCredential(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", core.NewCredentialUnavailableError(fmt.Sprintf("build session request: %v", err))
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", core.NewCredentialUnavailableError(fmt.Sprintf("fetch session token: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", core.NewCredentialUnavailableError(fmt.Sprintf("session endpoint returned status %d", resp.StatusCode))
	}

	var token sessionTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", core.NewCredentialUnavailableError(fmt.Sprintf("decode session token: %v", err))
	}
	secret := strings.TrimSpace(token.ClientSecret.Value)
	if secret == "" {
		return "", core.NewCredentialUnavailableError("no ephemeral key provided by the server")
	}
	return secret, nil
}
