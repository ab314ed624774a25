package automation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// HTTPSender calls webhook outputs.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender returns a sender using client, or a plain client with
// timeout when client is nil.
func NewHTTPSender(client *http.Client, timeout time.Duration) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSender{client: client}
}

// OAuth2 holds client credentials for webhook targets that require a
// bearer token.
type OAuth2 struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// NewOAuth2HTTPSender returns a sender whose requests carry a token
// obtained with the client credentials grant. Tokens are cached and
// refreshed by the oauth2 transport.
func NewOAuth2HTTPSender(ctx context.Context, creds OAuth2, timeout time.Duration) *HTTPSender {
	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     creds.TokenURL,
		Scopes:       creds.Scopes,
	}
	client := cfg.Client(ctx)
	client.Timeout = timeout
	return &HTTPSender{client: client}
}

// Send issues the request. Without an explicit method, outputs with a body
// are POSTed and the rest use GET.
func (s *HTTPSender) Send(ctx context.Context, p Payload) error {
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
		if p.Body != "" {
			method = http.MethodPost
		}
	}
	var body io.Reader
	if p.Body != "" {
		body = strings.NewReader(p.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.URL, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if p.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http output request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http output error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
