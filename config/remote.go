package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// EnvConfig names the environment variable consulted when no config source is given.
const EnvConfig = "PLANPIPE_CONFIG"

// Fetch performs an HTTP GET to url and overlays the response body on the
// defaults. The context bounds the request. If client is nil,
// http.DefaultClient is used. A non-2xx status is an error.
func Fetch(ctx context.Context, client *http.Client, url string) (*Config, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("config fetch: new request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config fetch %q: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("config fetch %q: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("config fetch %q: read body: %w", url, err)
	}
	cfg, err := Overlay(Default(), body)
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", url, err)
	}
	return cfg, nil
}

// Source returns src, or the value of PLANPIPE_CONFIG if src is empty.
func Source(src string) string {
	if src != "" {
		return src
	}
	return os.Getenv(EnvConfig)
}

// LoadSource loads the configuration named by src: an http(s) URL is fetched,
// anything else is read as a file path. An empty src yields the defaults.
func LoadSource(ctx context.Context, client *http.Client, src string) (*Config, error) {
	switch {
	case src == "":
		cfg := Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return Fetch(ctx, client, src)
	default:
		return Load(src)
	}
}
