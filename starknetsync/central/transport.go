package central

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/cenkalti/backoff/v4"
	"github.com/starkware-libs/starksync-go/starknetapi"
)

// ApiContractClass is a tagged union over the two class representations
// the feeder can return, mirroring the legacy/compiled split in StateDiff.
type ApiContractClass struct {
	Deprecated *starknetapi.DeprecatedContractClass
	Compiled   *starknetapi.ContractClass
}

// IntoDeprecated unwraps the deprecated variant or fails with
// BadContractClassTypeError.
func (c ApiContractClass) IntoDeprecated() (*starknetapi.DeprecatedContractClass, error) {
	if c.Deprecated == nil {
		return nil, &BadContractClassTypeError{}
	}
	return c.Deprecated, nil
}

// stateUpdateWire is the feeder's raw, non-canonicalized response shape
// for GET /feeder_gateway/get_state_update.
type stateUpdateWire struct {
	BlockHash starknetapi.BlockHash
	StateDiff *starknetapi.StateDiff
}

// FeederClient is the request/response contract with the trusted central
// source. It is deliberately narrow: four operations, matching spec.md
// §6's "Feeder gateway HTTP API". The production implementation
// (HTTPFeederClient, below) also carries the retry policy;
// CentralSource (client.go) adds bounded concurrency and ordered emission
// on top of a FeederClient.
type FeederClient interface {
	GetBlockNumber(ctx context.Context) (*starknetapi.BlockNumber, error)
	GetBlock(ctx context.Context, n starknetapi.BlockNumber) (*starknetapi.Block, error)
	GetStateUpdate(ctx context.Context, n starknetapi.BlockNumber) (*stateUpdateWire, error)
	GetContractClass(ctx context.Context, classHash starknetapi.ClassHash) (*ApiContractClass, error)
}

// HTTPFeederClient is the real FeederClient, talking JSON-over-HTTP to the
// feeder gateway with exponential-backoff retries on transport failures
// and 5xx responses.
type HTTPFeederClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	retry      RetryConfig
}

// NewHTTPFeederClient builds a feeder client from config. nodeVersion is
// sent as a User-Agent-style identifying header, the same role it plays
// in the teacher's sentry/RPC clients.
func NewHTTPFeederClient(cfg Config, nodeVersion string) *HTTPFeederClient {
	headers := map[string]string{"X-Node-Version": nodeVersion}
	for k, v := range cfg.HTTPHeaders {
		headers[k] = v
	}
	return &HTTPFeederClient{
		baseURL:    cfg.URL,
		headers:    headers,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		retry:      cfg.RetryConfig,
	}
}

func (c *HTTPFeederClient) backoffPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(c.retry.RetryBaseMillis) * time.Millisecond
	b.MaxInterval = time.Duration(c.retry.RetryMaxDelayMillis) * time.Millisecond
	b.MaxElapsedTime = 0
	withMax := backoff.BackOff(b)
	if c.retry.MaxRetries > 0 {
		withMax = backoff.WithMaxRetries(b, c.retry.MaxRetries)
	}
	return backoff.WithContext(withMax, ctx)
}

// doGET issues a GET request with the configured headers and retry policy.
// A request-construction failure (bad URL) is reported as a
// non-recoverable TransportError. Transport failures and 5xx responses are
// retried per the backoff policy and only surfaced if retries are
// exhausted; a 4xx response is returned at once without a retry.
func (c *HTTPFeederClient) doGET(ctx context.Context, path string) ([]byte, int, error) {
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &TransportError{Cause: err, RequestConstruction: true}
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	var body []byte
	var status int
	operation := func() error {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &TransportError{Cause: err}
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return &TransportError{Cause: err}
		}
		body = b
		if status >= 500 {
			return &BadStatusError{Code: status, Message: string(bytes.TrimSpace(body))}
		}
		if status >= 400 {
			return backoff.Permanent(&BadStatusError{Code: status, Message: string(bytes.TrimSpace(body))})
		}
		return nil
	}

	err = backoff.Retry(operation, c.backoffPolicy(ctx))
	if err != nil {
		if perm, ok := err.(*backoff.PermanentError); ok {
			return nil, status, perm.Err
		}
		return nil, status, err
	}
	return body, status, nil
}

// decodeJSON classifies a decode failure by the goccy/go-json error it
// actually got: a SyntaxError (malformed JSON on the wire) is fatal --
// Syntax true -- while an UnmarshalTypeError or any other decode failure
// (our model of the wire format disagreeing with a structurally valid
// payload) is recoverable.
func decodeJSON(body []byte, v interface{}) error {
	if err := gojson.Unmarshal(body, v); err != nil {
		var syntaxErr *gojson.SyntaxError
		return &DecodeError{Cause: err, Syntax: errors.As(err, &syntaxErr)}
	}
	return nil
}

// GetBlockNumber implements FeederClient.
func (c *HTTPFeederClient) GetBlockNumber(ctx context.Context) (*starknetapi.BlockNumber, error) {
	body, status, err := c.doGET(ctx, "/feeder_gateway/get_block_number")
	if err != nil {
		if bs, ok := err.(*BadStatusError); ok && bs.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	_ = status
	var n uint64
	if err := decodeJSON(body, &n); err != nil {
		return nil, err
	}
	bn := starknetapi.BlockNumber(n)
	return &bn, nil
}

// GetBlock implements FeederClient.
func (c *HTTPFeederClient) GetBlock(ctx context.Context, n starknetapi.BlockNumber) (*starknetapi.Block, error) {
	body, _, err := c.doGET(ctx, fmt.Sprintf("/feeder_gateway/get_block?blockNumber=%d", uint64(n)))
	if err != nil {
		if bs, ok := err.(*BadStatusError); ok && bs.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	var block starknetapi.Block
	if err := decodeJSON(body, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetStateUpdate implements FeederClient.
func (c *HTTPFeederClient) GetStateUpdate(ctx context.Context, n starknetapi.BlockNumber) (*stateUpdateWire, error) {
	body, _, err := c.doGET(ctx, fmt.Sprintf("/feeder_gateway/get_state_update?blockNumber=%d", uint64(n)))
	if err != nil {
		if bs, ok := err.(*BadStatusError); ok && bs.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	var wire stateUpdateWire
	if err := decodeJSON(body, &wire); err != nil {
		return nil, err
	}
	return &wire, nil
}

// GetContractClass implements FeederClient.
func (c *HTTPFeederClient) GetContractClass(ctx context.Context, classHash starknetapi.ClassHash) (*ApiContractClass, error) {
	body, _, err := c.doGET(ctx, fmt.Sprintf("/feeder_gateway/get_class_by_hash?classHash=%s", classHash))
	if err != nil {
		if bs, ok := err.(*BadStatusError); ok && bs.Code == 404 {
			return nil, nil
		}
		return nil, err
	}
	var class starknetapi.DeprecatedContractClass
	if err := decodeJSON(body, &class); err != nil {
		return nil, err
	}
	class.ClassHash = classHash
	return &ApiContractClass{Deprecated: &class}, nil
}
