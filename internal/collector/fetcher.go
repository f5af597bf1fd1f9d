package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"AShareLens/internal/model"
)

// Fetcher defines the interface for downloading price bars.
type Fetcher interface {
	FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error)
	Name() string
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// IsShanghai reports whether an A-share code trades in Shanghai (6xxxxx stocks, 5xxxxx funds, 9xxxxx B shares).
func IsShanghai(code string) bool {
	return code != "" && (code[0] == '6' || code[0] == '5' || code[0] == '9')
}
