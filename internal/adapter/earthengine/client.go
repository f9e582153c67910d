package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/couchcryptid/diversity-predict-service/internal/observability"
	"google.golang.org/api/googleapi"
)

// RequestsPerPrediction is the number of sequential Earth Engine calls behind
// one prediction: count, thumbnail creation, pixel download and reduction.
const RequestsPerPrediction = 4

// Options selects the Earth Engine project and imagery collection.
type Options struct {
	Project    string
	BaseURL    string
	Collection string
}

// Client implements domain.ImageryCatalog using the Earth Engine REST API.
type Client struct {
	project    string
	baseURL    string
	collection string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Earth Engine client. httpClient must attach
// credentials, see NewHTTPClient.
func NewClient(opts Options, httpClient *http.Client, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		project:    opts.Project,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		collection: opts.Collection,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// CountScenes returns the size of the filtered collection.
func (c *Client) CountScenes(ctx context.Context, q domain.SceneQuery) (int, error) {
	result, err := c.compute(ctx, "count", sceneCountExpr(c.collection, q))
	if err != nil {
		return 0, err
	}

	n, ok := result.(json.Number)
	if !ok {
		return 0, fmt.Errorf("scene count: unexpected result %v", result)
	}
	count, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("scene count: %w", err)
	}
	return int(count), nil
}

// RegionMeans reduces the median composite and its indices over the region.
func (c *Client) RegionMeans(ctx context.Context, q domain.SceneQuery, scaleMeters float64) (map[string]any, error) {
	result, err := c.compute(ctx, "reduce", regionMeansExpr(c.collection, q, scaleMeters))
	if err != nil {
		return nil, err
	}
	if result == nil {
		return map[string]any{}, nil
	}

	means, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("region means: unexpected result %v", result)
	}
	return means, nil
}

// Thumbnail creates a thumbnail of the composite and downloads its pixels.
func (c *Client) Thumbnail(ctx context.Context, q domain.SceneQuery, spec domain.ThumbnailSpec) ([]byte, error) {
	start := time.Now()
	data, err := c.thumbnail(ctx, q, spec)
	c.observe("thumbnail", start, err)
	return data, err
}

func (c *Client) thumbnail(ctx context.Context, q domain.SceneQuery, spec domain.ThumbnailSpec) ([]byte, error) {
	body := thumbnailRequest{
		Expression: thumbnailExpr(c.collection, q, spec),
		FileFormat: "PNG",
	}
	raw, err := c.doRequest(ctx, http.MethodPost, c.projectURL("thumbnails"), body)
	if err != nil {
		return nil, fmt.Errorf("create thumbnail: %w", err)
	}

	var created thumbnailResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("decode thumbnail response: %w", err)
	}
	if created.Name == "" {
		return nil, fmt.Errorf("create thumbnail: empty name in response")
	}

	pixels, err := c.doRequest(ctx, http.MethodGet, c.baseURL+"/"+created.Name+":getPixels", nil)
	if err != nil {
		return nil, fmt.Errorf("get thumbnail pixels: %w", err)
	}
	return pixels, nil
}

func (c *Client) compute(ctx context.Context, method string, expr expression) (any, error) {
	start := time.Now()
	result, err := c.computeValue(ctx, expr)
	c.observe(method, start, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return result, nil
}

func (c *Client) computeValue(ctx context.Context, expr expression) (any, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, c.projectURL("value:compute"), computeRequest{Expression: expr})
	if err != nil {
		return nil, err
	}

	var resp computeResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode compute response: %w", err)
	}
	return resp.Result, nil
}

func (c *Client) projectURL(resource string) string {
	return fmt.Sprintf("%s/projects/%s/%s", c.baseURL, c.project, resource)
}

func (c *Client) doRequest(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("earth engine request: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func (c *Client) observe(method string, start time.Time, err error) {
	c.metrics.ImageryAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
		c.logger.Warn("earth engine request failed", "method", method, "error", err)
	}
	c.metrics.ImageryRequests.WithLabelValues(method, outcome).Inc()
}

// Earth Engine API request and response types.

type computeRequest struct {
	Expression expression `json:"expression"`
}

type computeResponse struct {
	Result any `json:"result"`
}

type thumbnailRequest struct {
	Expression expression `json:"expression"`
	FileFormat string     `json:"fileFormat"`
}

type thumbnailResponse struct {
	Name string `json:"name"`
}
