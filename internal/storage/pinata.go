package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultPinataAPI is the Pinata API base URL.
const DefaultPinataAPI = "https://api.pinata.cloud"

// ErrPinRejected wraps non-2xx answers from the pinning service.
var ErrPinRejected = errors.New("pinning service rejected upload")

// PinataConfig configures the pinning client.
type PinataConfig struct {
	APIURL    string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Pinata pins files through Pinata's pinFileToIPFS endpoint.
//
// Two credential styles are supported: a scoped JWT (sent as a bearer
// token) or a legacy key/secret pair. A secret that looks like a JWT
// (starts with "eyJ") selects bearer auth.
type Pinata struct {
	cfg        PinataConfig
	httpClient *http.Client
}

// NewPinata creates a Pinata client.
func NewPinata(cfg PinataConfig) *Pinata {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultPinataAPI
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Pinata{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Configured reports whether credentials are present.
func (p *Pinata) Configured() bool {
	return p.cfg.APISecret != ""
}

// UsesJWT reports whether requests authenticate with a bearer JWT.
func (p *Pinata) UsesJWT() bool {
	return strings.HasPrefix(p.cfg.APISecret, "eyJ")
}

func (p *Pinata) authorize(h http.Header) {
	if p.UsesJWT() {
		h.Set("Authorization", "Bearer "+p.cfg.APISecret)
		return
	}
	h.Set("pinata_api_key", p.cfg.APIKey)
	h.Set("pinata_secret_api_key", p.cfg.APISecret)
}

type pinResponse struct {
	IpfsHash  string          `json:"IpfsHash"`
	PinSize   int64           `json:"PinSize"`
	Timestamp string          `json:"Timestamp"`
	Error     json.RawMessage `json:"error"`
}

// Pin streams r to Pinata as a multipart upload named filename and returns
// the resulting CID. The body is produced through a pipe, so large files
// are never buffered in memory.
func (p *Pinata) Pin(ctx context.Context, filename string, r io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+"/pinning/pinFileToIPFS", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", fmt.Errorf("build pin request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	p.authorize(req.Header)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", fmt.Errorf("pin request: %w", err)
	}
	defer resp.Body.Close()

	var out pinResponse
	decErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.Trim(string(out.Error), `"`)
		if msg == "" {
			msg = resp.Status
		}
		return "", fmt.Errorf("%w: %d %s", ErrPinRejected, resp.StatusCode, msg)
	}
	if decErr != nil {
		return "", fmt.Errorf("decode pin response: %w", decErr)
	}
	if !ValidCID(out.IpfsHash) {
		return "", fmt.Errorf("pin response carried invalid cid %q", out.IpfsHash)
	}
	return out.IpfsHash, nil
}
