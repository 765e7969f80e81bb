// Package catalog is the typed client for the hosted imagery platform:
// scene search, clipped raster retrieval and vector boundary lookup. The
// platform is treated as an opaque archive; all analysis happens locally.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/schollz/progressbar/v3"

	"vegtrend/internal/httputil"
	"vegtrend/internal/metrics"
	"vegtrend/internal/region"
	"vegtrend/internal/spectral"
)

type Client struct {
	baseURL string
	token   string
	client  *http.Client

	// RetryMaxElapsed bounds the total retry window per call.
	RetryMaxElapsed time.Duration
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:         baseURL,
		token:           token,
		client:          httputil.NewClient(),
		RetryMaxElapsed: 2 * time.Minute,
	}
}

// SearchScenes lists archive scenes intersecting the region bounds within
// the date range, below the cloud-cover threshold.
func (c *Client) SearchScenes(ctx context.Context, reg *region.Region, start, end time.Time, maxCloud float64) ([]SceneMeta, error) {
	b := reg.Bounds()
	q := url.Values{}
	q.Set("bbox", fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("max_cloud", strconv.FormatFloat(maxCloud, 'f', 1, 64))

	body, err := c.do(ctx, "search", http.MethodGet, "/v1/scenes?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal scene search: %w", err)
	}
	return resp.Scenes, nil
}

// FetchScene retrieves one scene clipped to the region at the given pixel
// size. Pixels outside the clip geometry arrive masked.
func (c *Client) FetchScene(ctx context.Context, meta SceneMeta, reg *region.Region, resolutionM int) (*spectral.Scene, error) {
	var geom bytes.Buffer
	if err := reg.WriteGeoJSON(&geom); err != nil {
		return nil, fmt.Errorf("encode clip geometry: %w", err)
	}
	reqBody, err := json.Marshal(map[string]any{
		"geometry":     json.RawMessage(geom.Bytes()),
		"resolution_m": resolutionM,
		"bands":        []spectral.Band{spectral.BandBlue, spectral.BandRed, spectral.BandNIR, spectral.BandSWIR, spectral.BandSCL, spectral.BandCloudProb},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal clip request: %w", err)
	}

	body, err := c.do(ctx, "clip", http.MethodPost, "/v1/scenes/"+url.PathEscape(meta.ID)+"/clip", reqBody)
	if err != nil {
		return nil, err
	}

	var resp clipResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal clip response: %w", err)
	}
	scene, err := resp.toScene(meta)
	if err != nil {
		return nil, err
	}
	metrics.ScenesFetched.Inc()
	return scene, nil
}

// FetchScenes retrieves every listed scene, with a progress bar on the
// terminal. One failed retrieval fails the batch.
func (c *Client) FetchScenes(ctx context.Context, metas []SceneMeta, reg *region.Region, resolutionM int) ([]*spectral.Scene, error) {
	bar := progressbar.Default(int64(len(metas)), "fetching scenes")
	scenes := make([]*spectral.Scene, 0, len(metas))
	for _, meta := range metas {
		scene, err := c.FetchScene(ctx, meta, reg, resolutionM)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", meta.ID, err)
		}
		scenes = append(scenes, scene)
		bar.Add(1)
	}
	return scenes, nil
}

// LookupBoundary resolves a watershed boundary ID into a region geometry.
func (c *Client) LookupBoundary(ctx context.Context, watershedID string) (*region.Region, error) {
	body, err := c.do(ctx, "boundary", http.MethodGet, "/v1/boundaries/"+url.PathEscape(watershedID), nil)
	if err != nil {
		return nil, err
	}
	reg, err := region.FromGeoJSON(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("boundary %s: %w", watershedID, err)
	}
	return reg, nil
}

// do issues one API call with retry on rate limiting. Transport failures
// and non-retryable statuses surface as RemoteError.
func (c *Client) do(ctx context.Context, op, method, path string, reqBody []byte) ([]byte, error) {
	var body []byte
	started := time.Now()

	operation := func() error {
		var rdr io.Reader
		if reqBody != nil {
			rdr = bytes.NewReader(reqBody)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
		if err != nil {
			return backoff.Permanent(&RemoteError{Op: op, Msg: err.Error()})
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			metrics.CatalogAPICallsTotal.WithLabelValues(op, "error").Inc()
			return backoff.Permanent(&RemoteError{Op: op, Msg: err.Error()})
		}
		defer resp.Body.Close()

		metrics.CatalogAPICallsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
			return &RemoteError{Op: op, Status: resp.StatusCode, Msg: "rate limited or throttled"}
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(&RemoteError{Op: op, Status: resp.StatusCode, Msg: string(b)})
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(&RemoteError{Op: op, Msg: "read body: " + err.Error()})
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.RetryMaxElapsed
	err := backoff.Retry(operation, backoff.WithContext(bo, ctx))
	metrics.CatalogAPILatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}
	return body, nil
}
