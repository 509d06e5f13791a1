package hubapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jake-scott/dirigera-bridge/internal/pkg/logging"
	"github.com/jake-scott/dirigera-bridge/version"
)

const (
	DefaultPort       = 8443
	DefaultAPIVersion = "v1"
)

type Live struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	ctx     context.Context
}

// NewLiveClient returns a client for the hub at address.  The address is
// fixed for the life of the client.
func NewLiveClient(address string, port int, apiVersion string, token string) *Live {
	u := url.URL{
		Scheme: "https",
		Host:   net.JoinHostPort(address, strconv.Itoa(port)),
		Path:   "/" + apiVersion,
	}

	return &Live{
		baseURL: u.String(),
		client:  &http.Client{Transport: newTransport(token)},
		ctx:     context.Background(),
	}
}

// The hub only presents a self-signed certificate, so chain verification
// is switched off for this transport and nothing else.  Traffic is still
// encrypted.  The bearer token rides on every request via oauth2.
func newTransport(token string) http.RoundTripper {
	base := &http.Transport{
		Proxy: nil,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec
		},
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
		Base:   base,
	}
}

func (c *Live) WithContext(ctx context.Context) Hub {
	nc := *c
	nc.ctx = ctx
	return &nc
}

func (c *Live) WithTimeout(d time.Duration) Hub {
	nc := *c
	nc.timeout = d
	return &nc
}

// BaseURL is the versioned API root of the hub
func (c *Live) BaseURL() string {
	return c.baseURL
}

func (c *Live) MakeContext() (context.Context, context.CancelFunc) {
	var ctx = c.ctx
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	return ctx, cancel
}

func (c *Live) do(method string, path string, body io.Reader) ([]byte, error) {
	ctx, cancel := c.MakeContext()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "building hub request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "executing hub %s %s", method, path)
	}
	defer resp.Body.Close()

	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading hub response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Method: method, Path: path, StatusCode: resp.StatusCode, Body: bodyBytes}
	}

	return bodyBytes, nil
}

func (c *Live) Devices() ([]json.RawMessage, error) {
	body, err := c.do(http.MethodGet, "/devices", nil)
	if err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, errors.Wrap(err, "decoding hub device list")
	}

	logging.Logger(c.ctx).Debugf("hub returned %d device records", len(records))

	return records, nil
}

// The hub expects patches wrapped in a single-element array
type patchEnvelope struct {
	Attributes map[string]interface{} `json:"attributes"`
}

func (c *Live) PatchDevice(deviceID string, attributes map[string]interface{}) error {
	reqBody, err := json.Marshal([]patchEnvelope{{Attributes: attributes}})
	if err != nil {
		return errors.Wrap(err, "encoding device patch")
	}

	logging.Logger(c.ctx).Debugf("patching device %s: %s", deviceID, reqBody)

	_, err = c.do(http.MethodPatch, "/devices/"+url.PathEscape(deviceID), bytes.NewReader(reqBody))
	return err
}
