package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultStatBaseURL is the Web Data Service root of the external
// statistics service.
const DefaultStatBaseURL = "https://www150.statcan.gc.ca/t1/wds/rest"

// NationalCoordinate is the fixed generic top-level member coordinate used
// for every latest-observation request. Only the leading member (Canada) is
// significant; trailing dimensions are zeroed.
const NationalCoordinate = "1.0.0.0.0.0.0.0.0.0"

const statMaxResponseBytes = 20 << 20

// StatClient talks to the statistics service's REST interface. The zero
// value is not usable; construct with NewStatClient.
type StatClient struct {
	baseURL string
	client  *http.Client
}

// StatOption configures a StatClient.
type StatOption func(*StatClient)

// WithStatBaseURL overrides the service root (useful for testing).
func WithStatBaseURL(url string) StatOption {
	return func(c *StatClient) {
		c.baseURL = url
	}
}

// WithStatHTTPClient overrides the HTTP client.
func WithStatHTTPClient(client *http.Client) StatOption {
	return func(c *StatClient) {
		c.client = client
	}
}

// NewStatClient creates a client against the default service root.
func NewStatClient(opts ...StatOption) *StatClient {
	c := &StatClient{
		baseURL: DefaultStatBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statEnvelope is the per-request wrapper every endpoint returns.
type statEnvelope struct {
	Status string          `json:"status"`
	Object json.RawMessage `json:"object"`
}

func (e *statEnvelope) success() bool {
	return e.Status == "SUCCESS"
}

// CubeMetadata is the subset of product metadata the pipeline consumes.
type CubeMetadata struct {
	ProductID   json.Number `json:"productId"`
	CubeTitleEn string      `json:"cubeTitleEn"`
	CubeEndDate string      `json:"cubeEndDate"`
}

// Observation is a single data point with its unit-scale code.
type Observation struct {
	Value            float64
	ScalarFactorCode int
}

// ScalarCode is one unit-scale code with its human-readable descriptor.
type ScalarCode struct {
	Code         int    `json:"scalarFactorCode"`
	DescriptorEn string `json:"scalarFactorDescEn"`
}

// CatalogEntry is one row of the full catalog listing.
type CatalogEntry struct {
	ProductID   json.Number `json:"productId"`
	CubeTitleEn string      `json:"cubeTitleEn"`
	ReleaseTime string      `json:"releaseTime"`
}

// GetCubeMetadata confirms a product exists and returns its metadata.
func (c *StatClient) GetCubeMetadata(ctx context.Context, productID string) (*CubeMetadata, error) {
	pid, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stat metadata: bad product id %q: %w", productID, err)
	}

	body := []map[string]interface{}{{"productId": pid}}
	env, err := c.post(ctx, "/getCubeMetadata", body)
	if err != nil {
		return nil, fmt.Errorf("stat metadata %s: %w", productID, err)
	}

	var meta CubeMetadata
	if err := json.Unmarshal(env.Object, &meta); err != nil {
		return nil, fmt.Errorf("stat metadata %s: decoding object: %w", productID, err)
	}
	return &meta, nil
}

// GetLatestObservation returns the most recent single observation for the
// product at the given member coordinate.
func (c *StatClient) GetLatestObservation(ctx context.Context, productID, coordinate string) (*Observation, error) {
	pid, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stat observation: bad product id %q: %w", productID, err)
	}

	body := []map[string]interface{}{{
		"productId":  pid,
		"coordinate": coordinate,
		"latestN":    1,
	}}
	env, err := c.post(ctx, "/getDataFromCubePidCoordAndLatestNPeriods", body)
	if err != nil {
		return nil, fmt.Errorf("stat observation %s: %w", productID, err)
	}

	var obj struct {
		VectorDataPoint []struct {
			Value            *float64 `json:"value"`
			ScalarFactorCode int      `json:"scalarFactorCode"`
		} `json:"vectorDataPoint"`
	}
	if err := json.Unmarshal(env.Object, &obj); err != nil {
		return nil, fmt.Errorf("stat observation %s: decoding object: %w", productID, err)
	}
	if len(obj.VectorDataPoint) == 0 || obj.VectorDataPoint[0].Value == nil {
		return nil, fmt.Errorf("stat observation %s: no data points", productID)
	}

	return &Observation{
		Value:            *obj.VectorDataPoint[0].Value,
		ScalarFactorCode: obj.VectorDataPoint[0].ScalarFactorCode,
	}, nil
}

// GetScalarCodes returns the unit-scale code set with descriptors.
func (c *StatClient) GetScalarCodes(ctx context.Context) ([]ScalarCode, error) {
	env, err := c.get(ctx, "/getCodeSets")
	if err != nil {
		return nil, fmt.Errorf("stat code sets: %w", err)
	}

	var obj struct {
		Scalar []ScalarCode `json:"scalar"`
	}
	if err := json.Unmarshal(env.Object, &obj); err != nil {
		return nil, fmt.Errorf("stat code sets: decoding object: %w", err)
	}
	return obj.Scalar, nil
}

// GetCatalogListing returns the full lightweight catalog. The listing is a
// bare array rather than a status envelope.
func (c *StatClient) GetCatalogListing(ctx context.Context) ([]CatalogEntry, error) {
	data, err := c.getRaw(ctx, "/getAllCubesListLite")
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("stat catalog: decoding listing: %w", err)
	}
	return entries, nil
}

func (c *StatClient) post(ctx context.Context, path string, body interface{}) (*statEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doEnvelope(req, true)
}

func (c *StatClient) get(ctx context.Context, path string) (*statEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.doEnvelope(req, false)
}

func (c *StatClient) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req)
}

// doEnvelope executes the request and unwraps the status envelope. POST
// endpoints answer with an array of envelopes (one per request item); GET
// endpoints answer with a single envelope.
func (c *StatClient) doEnvelope(req *http.Request, arrayWrapped bool) (*statEnvelope, error) {
	data, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var env statEnvelope
	if arrayWrapped {
		var envs []statEnvelope
		if err := json.Unmarshal(data, &envs); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		if len(envs) == 0 {
			return nil, fmt.Errorf("empty response array")
		}
		env = envs[0]
	} else {
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}

	if !env.success() {
		return nil, fmt.Errorf("service status %q", env.Status)
	}
	return &env, nil
}

func (c *StatClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, statMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}
