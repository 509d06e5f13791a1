package proxyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
	"github.com/jake-scott/dirigera-bridge/version"
)

// StatusError is returned when the proxy answers with a non-2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxy %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Client talks to the bridge's own HTTP surface rather than the hub
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	ctx     context.Context
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		ctx:     context.Background(),
	}
}

func (c *Client) WithContext(ctx context.Context) *Client {
	nc := *c
	nc.ctx = ctx
	return &nc
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	nc := *c
	nc.timeout = d
	return &nc
}

func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	nc := *c
	nc.client = hc
	return &nc
}

func (c *Client) makeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = c.ctx
	}
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	return ctx, cancel
}

func (c *Client) do(ctx context.Context, method string, path string, body io.Reader) ([]byte, error) {
	ctx, cancel := c.makeContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building proxy request")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if txnID, ok := logging.TxnID(ctx); ok {
		req.Header.Set("X-Correlation-ID", txnID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "executing proxy %s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading proxy response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

// Devices fetches the hub's device records through the proxy
func (c *Client) Devices(ctx context.Context) ([]json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, errors.Wrap(err, "decoding device list")
	}
	return records, nil
}

type patchRequest struct {
	Attributes map[string]interface{} `json:"attributes"`
}

// PatchDevice asks the proxy to forward an attribute patch to the hub
func (c *Client) PatchDevice(ctx context.Context, deviceID string, attributes map[string]interface{}) error {
	reqBody, err := json.Marshal(patchRequest{Attributes: attributes})
	if err != nil {
		return errors.Wrap(err, "encoding device patch")
	}

	_, err = c.do(ctx, http.MethodPatch, "/devices/"+url.PathEscape(deviceID), bytes.NewReader(reqBody))
	return err
}
