package deepgram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Ping verifies the API key against GET {api_base}/projects.
func Ping(ctx context.Context, client *http.Client, cfg Config) error {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("deepgram api key is not configured")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.DialTimeout}
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/") + "/projects"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build deepgram request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reach deepgram: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("deepgram rejected the api key (HTTP %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("deepgram returned HTTP %d", resp.StatusCode)
	}
	return nil
}
