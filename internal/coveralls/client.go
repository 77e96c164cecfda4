package coveralls

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const userAgent = "covtrail (+https://github.com/covtrail/covtrail)"

// maxErrorBody bounds how much of a non-2xx body is kept in the error.
const maxErrorBody = 512

// Client retrieves single pages of a repository's build history.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ contract.PageFetcher = &Client{} // Compile-time check

// NewClient creates a page client rooted at baseURL.
// TLS certificates are verified unless sslVerify is false.
func NewClient(baseURL string, sslVerify bool, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: newHTTPClient(sslVerify),
		logger:     logger,
	}
}

// newHTTPClient clones the default transport and applies the TLS toggle.
// No client timeout is set; cancellation comes from the request context.
func newHTTPClient(sslVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !sslVerify, //nolint:gosec // user opt-out via --no-ssl-verify
		MinVersion:         tls.VersionTLS12,
	}
	return &http.Client{Transport: transport}
}

// PageURL returns the resource URL of one page.
func (c *Client) PageURL(repo string, page int) string {
	return c.baseURL + repo + ".json?page=" + strconv.Itoa(page)
}

// FetchPage performs one GET and decodes the envelope.
func (c *Client) FetchPage(ctx context.Context, repo string, page int) (*schema.Envelope, error) {
	url := c.PageURL(repo, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, contract.NewTransportError(url, page, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, contract.NewTransportError(url, page, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var cause error
		if msg := strings.TrimSpace(string(body)); msg != "" {
			cause = errors.New(msg)
		}
		return nil, contract.NewTransportError(url, page, resp.StatusCode, cause)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contract.NewTransportError(url, page, resp.StatusCode, errors.Wrap(err, "reading body"))
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, contract.NewParseError(url, page, err)
	}
	env.URL = url

	c.logger.Debug("Fetched coveralls page",
		zap.String("url", url),
		zap.Int("page", page),
		zap.Int("pages", env.Pages),
		zap.Int("builds", len(env.Builds)),
	)
	return env, nil
}

// decodeEnvelope parses one page body. Numbers stay json.Number.
func decodeEnvelope(data []byte) (*schema.Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "invalid JSON body")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON document")
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected a JSON object, got %s", jsonKind(raw))
	}

	buildsRaw, ok := obj["builds"]
	if !ok {
		return nil, errors.New(`missing "builds" field`)
	}
	list, ok := buildsRaw.([]any)
	if !ok {
		return nil, errors.Errorf(`"builds" must be an array, got %s`, jsonKind(buildsRaw))
	}
	builds := make([]map[string]any, 0, len(list))
	for i, b := range list {
		m, ok := b.(map[string]any)
		if !ok {
			return nil, errors.Errorf("build %d must be an object, got %s", i, jsonKind(b))
		}
		builds = append(builds, m)
	}

	pagesRaw, ok := obj["pages"]
	if !ok {
		return nil, errors.New(`missing "pages" field`)
	}
	n, ok := pagesRaw.(json.Number)
	if !ok {
		return nil, errors.Errorf(`"pages" must be a number, got %s`, jsonKind(pagesRaw))
	}
	pages, err := n.Int64()
	if err != nil || pages < 0 {
		return nil, errors.Errorf(`"pages" must be a non-negative integer, got %s`, n)
	}

	extra := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != "builds" && k != "pages" {
			extra[k] = v
		}
	}

	return &schema.Envelope{Builds: builds, Pages: int(pages), Extra: extra}, nil
}

// jsonKind names the JSON type of a decoded value for error messages.
func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}
