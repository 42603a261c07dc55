// Package esclient is a thin HTTP wrapper over an Elasticsearch-
// compatible (v6/7, "_doc" type) document search engine — the wire
// protocol the rest of the pipeline assumes, per spec §4.1. It is
// grounded on the original source's elastic_client/elasticsearch_client
// split (one class owning the HTTP transport, one translating calls
// into index/_doc/_update/_bulk paths) and, for the response-handling
// idiom (wrap with context, distinguish response-code vs connection
// errors), on the teacher's use of github.com/pkg/errors at the HTTP
// boundary.
package esclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const requestTimeout = 60 * time.Second

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("esclient: document not found")

// ResponseCodeError wraps a non-2xx response from the engine.
type ResponseCodeError struct {
	StatusCode int
	Body       string
}

func (e *ResponseCodeError) Error() string {
	return "esclient: response code " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// BulkErrorsError is returned when a _bulk response reports
// errors:true, even though the HTTP status itself was 2xx.
type BulkErrorsError struct {
	Body string
}

func (e *BulkErrorsError) Error() string {
	return "esclient: bulk response reported errors: " + e.Body
}

// Client is a synchronous, blocking HTTP client over a single
// Elasticsearch-compatible base URL.
type Client struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

// New returns a Client for baseURL (expected to already carry a
// trailing slash, per config.Config.NormalizedURL).
func New(baseURL, user, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		user:     user,
		password: password,
		http: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "esclient: build request")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "esclient: connection error")
	}
	return resp, nil
}

func readBody(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "esclient: read response body")
	}
	return string(b), nil
}

// Head reports whether path returns 2xx (true) or 404 (false). Any
// other status is a ResponseCodeError.
func (c *Client) Head(ctx context.Context, path string) (bool, error) {
	resp, err := c.do(ctx, http.MethodHead, path, nil)
	if err != nil {
		return false, err
	}
	body, err := readBody(resp)
	if err != nil {
		return false, err
	}
	switch {
	case is2xx(resp.StatusCode):
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, &ResponseCodeError{StatusCode: resp.StatusCode, Body: body}
	}
}

func docPath(index, id string) string {
	if id == "" {
		return index + "/_doc"
	}
	return index + "/_doc/" + id
}

// DocExists reports whether index/id is already present, via HEAD.
func (c *Client) DocExists(ctx context.Context, index, id string) (bool, error) {
	return c.Head(ctx, docPath(index, id))
}

// Index PUTs body at index/_doc/id, or POSTs it to index/_doc when id
// is empty so the engine assigns one.
func (c *Client) Index(ctx context.Context, index string, body []byte, id string) error {
	method := http.MethodPost
	if id != "" {
		method = http.MethodPut
	}
	resp, err := c.do(ctx, method, docPath(index, id), bytes.NewReader(body))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return nil
}

// Create idempotently creates a document: 2xx and 409 (already
// exists) both succeed.
func (c *Client) Create(ctx context.Context, index string, body []byte, id string) (int, error) {
	resp, err := c.do(ctx, http.MethodPut, docPath(index, id)+"/_create", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return 0, err
	}
	if is2xx(resp.StatusCode) || resp.StatusCode == http.StatusConflict {
		return resp.StatusCode, nil
	}
	return 0, &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
}

// Get decodes the document at index/id into out. Returns ErrNotFound
// on 404.
func (c *Client) Get(ctx context.Context, index, id string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, docPath(index, id), nil)
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return json.Unmarshal([]byte(respBody), out)
}

// Search runs query against index and decodes the response into out.
func (c *Client) Search(ctx context.Context, index string, query []byte, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, index+"/_search", bytes.NewReader(query))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return json.Unmarshal([]byte(respBody), out)
}

type countResponse struct {
	Count uint64 `json:"count"`
}

// Count returns the number of documents in index matching query.
func (c *Client) Count(ctx context.Context, index string, query []byte) (uint64, error) {
	resp, err := c.do(ctx, http.MethodGet, index+"/_count", bytes.NewReader(query))
	if err != nil {
		return 0, err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return 0, err
	}
	if !is2xx(resp.StatusCode) {
		return 0, &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	var cr countResponse
	if err := json.Unmarshal([]byte(respBody), &cr); err != nil {
		return 0, errors.Wrap(err, "esclient: decode count response")
	}
	return cr.Count, nil
}

// Update POSTs body (a full update envelope — doc, script, or
// scripted_upsert form) to index/_doc/id/_update.
func (c *Client) Update(ctx context.Context, index, id string, body []byte) error {
	resp, err := c.do(ctx, http.MethodPost, docPath(index, id)+"/_update", bytes.NewReader(body))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return nil
}

// DeleteByQuery removes all documents in index matching query.
func (c *Client) DeleteByQuery(ctx context.Context, index string, query []byte) error {
	resp, err := c.do(ctx, http.MethodPost, index+"/_delete_by_query", bytes.NewReader(query))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return nil
}

// DeleteIndex drops index. A 404 (already absent) is tolerated.
func (c *Client) DeleteIndex(ctx context.Context, index string) error {
	resp, err := c.do(ctx, http.MethodDelete, index, nil)
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if is2xx(resp.StatusCode) || resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
}

// PutMapping creates index with the given (opaque) mapping template
// body, if it does not already exist.
func (c *Client) PutMapping(ctx context.Context, index string, mapping []byte) error {
	exists, err := c.Head(ctx, index)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	resp, err := c.do(ctx, http.MethodPut, index, bytes.NewReader(mapping))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	return nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
}

// Bulk POSTs NDJSON body to _bulk (or index/_bulk when index is
// non-empty). The response's errors field must be literally false;
// otherwise the whole batch is reported as a BulkErrorsError even
// though the HTTP status was 2xx.
func (c *Client) Bulk(ctx context.Context, index string, body []byte) error {
	path := "_bulk"
	if index != "" {
		path = index + "/_bulk"
	}
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	respBody, err := readBody(resp)
	if err != nil {
		return err
	}
	if !is2xx(resp.StatusCode) {
		return &ResponseCodeError{StatusCode: resp.StatusCode, Body: respBody}
	}
	var br bulkResponse
	if err := json.Unmarshal([]byte(respBody), &br); err != nil {
		return errors.Wrap(err, "esclient: decode bulk response")
	}
	if br.Errors {
		return &BulkErrorsError{Body: respBody}
	}
	return nil
}
