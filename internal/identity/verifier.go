package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TokenVerifier exchanges an opaque provider token for a stable identity
// against an external verification endpoint.
type TokenVerifier struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// ProviderIdentity is the verifier's answer: a stable subject plus the
// provider-reported email, which may be empty.
type ProviderIdentity struct {
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

// NewTokenVerifier creates a verifier client for the given endpoint.
func NewTokenVerifier(baseURL string, log *zap.SugaredLogger) *TokenVerifier {
	return &TokenVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

// Verify posts the token and returns the provider identity. A rejected
// token comes back as ErrInvalidCredentials so callers treat it like any
// other retryable auth failure.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (ProviderIdentity, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("verifier request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ProviderIdentity{}, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(resp.Body)
		return ProviderIdentity{}, fmt.Errorf("verifier status %d: %s", resp.StatusCode, string(b))
	}

	var ident ProviderIdentity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return ProviderIdentity{}, fmt.Errorf("decode: %w", err)
	}
	if ident.Subject == "" {
		return ProviderIdentity{}, fmt.Errorf("verifier returned empty subject")
	}
	return ident, nil
}

// Available checks whether the verifier endpoint is reachable.
func (v *TokenVerifier) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", v.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// WaitForReady polls the verifier until it responds or ctx expires.
// Non-fatal: provider sign-in is optional.
func (v *TokenVerifier) WaitForReady(ctx context.Context) bool {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	if v.Available(ctx) {
		v.log.Infow("token verifier ready", "url", v.baseURL)
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if v.Available(ctx) {
				v.log.Infow("token verifier ready", "url", v.baseURL)
				return true
			}
		}
	}
}
