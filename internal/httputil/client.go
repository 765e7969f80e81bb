package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 60 * time.Second

const userAgent = "vegtrend/1.0"

type uaTransport struct {
	base http.RoundTripper
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(req)
}

// NewClient returns an HTTP client with standard timeout and User-Agent
// configuration. Raster retrieval can be slow for large regions, hence the
// generous timeout.
func NewClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: &uaTransport{base: http.DefaultTransport},
	}
}
