package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultGateway is the public Pinata gateway host.
const DefaultGateway = "gateway.pinata.cloud"

// Gateway resolves CIDs against an IPFS HTTP gateway and fetches objects for
// the stream proxy.
type Gateway struct {
	host       string
	httpClient *http.Client
}

// NewGateway creates a gateway client. host may be a bare host name
// ("gateway.pinata.cloud") or a full base URL ("http://127.0.0.1:8080").
func NewGateway(host string, timeout time.Duration) *Gateway {
	if strings.TrimSpace(host) == "" {
		host = DefaultGateway
	}
	return &Gateway{
		host: strings.TrimRight(host, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{MaxIdleConnsPerHost: 10},
		},
	}
}

// URL returns the public URL of cid. It is a pure function of configuration.
func (g *Gateway) URL(cid string) string {
	if strings.Contains(g.host, "://") {
		return fmt.Sprintf("%s/ipfs/%s", g.host, cid)
	}
	return fmt.Sprintf("https://%s/ipfs/%s", g.host, cid)
}

// Fetch issues a GET for cid, forwarding rangeHeader when non-empty.
// The caller MUST close resp.Body.
func (g *Gateway) Fetch(ctx context.Context, cid, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL(cid), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway fetch %s: %w", cid, err)
	}
	return resp, nil
}
