// Package submission posts assembled payloads to the quote sink and maps the
// answer to a result or a user-facing error.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/payload"
)

// ApplicationDataPart names the multipart part carrying the JSON payload.
const ApplicationDataPart = "applicationData"

const maxResponseBytes = 1 << 20

// Result is what the confirmation screen needs after a successful submit.
type Result struct {
	Form            string
	ID              string
	ReferenceNumber string
	Status          string
	Name            string
	Email           string
}

// Reference returns the reference number, or the record id when the sink
// only sent an id.
func (r *Result) Reference() string {
	if r == nil {
		return ""
	}
	if r.ReferenceNumber != "" {
		return r.ReferenceNumber
	}
	return r.ID
}

// Record is one stored quote request as listed by the sink.
type Record struct {
	ID              string    `json:"id"`
	ReferenceNumber string    `json:"referenceNumber"`
	Status          string    `json:"status"`
	Name            string    `json:"name,omitempty"`
	Email           string    `json:"email,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Opener returns the content of an attachment stored at path.
type Opener func(path string) (io.ReadCloser, error)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithOpener replaces the file opener used for attachments.
func WithOpener(open Opener) Option {
	return func(c *Client) {
		if open != nil {
			c.open = open
		}
	}
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the submission sink. It never retries and sends no
// idempotency key; each Submit call is at most one request.
type Client struct {
	base    *url.URL
	http    *http.Client
	open    Opener
	headers http.Header
	logger  *zap.Logger

	mu    sync.Mutex
	cache map[string][]Record
}

// NewClient builds a Client resolving relative form endpoints against
// baseURL. An empty baseURL is allowed when every endpoint is absolute.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		http:    http.DefaultClient,
		open:    func(path string) (io.ReadCloser, error) { return os.Open(path) },
		headers: make(http.Header),
		logger:  zap.NewNop(),
		cache:   make(map[string][]Record),
	}
	if strings.TrimSpace(baseURL) != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("submission: parse base url: %w", err)
		}
		c.base = base
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Submit posts p as JSON, or as multipart when it carries attachments.
// Failures are *TransportError or *RejectedError; a successful submit
// invalidates the cached submission list of the endpoint.
func (c *Client) Submit(ctx context.Context, p *payload.Payload) (*Result, error) {
	if p == nil {
		return nil, errors.New("submission: nil payload")
	}
	target, err := c.resolve(p.Endpoint)
	if err != nil {
		return nil, err
	}
	body, contentType, err := c.encode(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("submission: build request: %w", err)
	}
	c.decorate(req)
	req.Header.Set("Content-Type", contentType)

	status, raw, err := c.do(req)
	if err != nil {
		c.logger.Warn("submission transport failure", zap.String("form", p.Form), zap.String("endpoint", target), zap.Error(err))
		return nil, err
	}
	if status < 200 || status > 299 {
		rejected := &RejectedError{Status: status, Message: sinkMessage(raw)}
		c.logger.Warn("submission rejected", zap.String("form", p.Form), zap.Int("status", status), zap.String("message", rejected.Message))
		return nil, rejected
	}

	ack, err := decodeAck(raw)
	if err != nil {
		return nil, &RejectedError{Status: status, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	c.invalidate(target)

	result := &Result{
		Form:            p.Form,
		ID:              ack.id,
		ReferenceNumber: ack.reference,
		Status:          ack.status,
		Name:            p.Name,
		Email:           p.Email,
	}
	c.logger.Info("submission accepted", zap.String("form", p.Form), zap.String("reference", result.Reference()), zap.Bool("multipart", p.HasAttachments()))
	return result, nil
}

// Submissions lists the quotes stored under endpoint, newest first. Results
// are cached until the next successful Submit to the same endpoint.
func (c *Client) Submissions(ctx context.Context, endpoint string) ([]Record, error) {
	target, err := c.resolve(endpoint)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	cached, ok := c.cache[target]
	c.mu.Unlock()
	if ok {
		return append([]Record(nil), cached...), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("submission: build request: %w", err)
	}
	c.decorate(req)
	status, raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &RejectedError{Status: status, Message: sinkMessage(raw)}
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &RejectedError{Status: status, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	c.mu.Lock()
	c.cache[target] = records
	c.mu.Unlock()
	return append([]Record(nil), records...), nil
}

// Invalidate drops the cached submission list for endpoint.
func (c *Client) Invalidate(endpoint string) {
	if target, err := c.resolve(endpoint); err == nil {
		c.invalidate(target)
	}
}

func (c *Client) invalidate(target string) {
	c.mu.Lock()
	delete(c.cache, target)
	c.mu.Unlock()
}

func (c *Client) resolve(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", ErrNoEndpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("submission: parse endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if c.base == nil {
		return "", fmt.Errorf("%w: %q is relative and no base url is configured", ErrNoEndpoint, endpoint)
	}
	return c.base.ResolveReference(ref).String(), nil
}

func (c *Client) decorate(req *http.Request) {
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Endpoint: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, &TransportError{Endpoint: req.URL.String(), Err: err}
	}
	return resp.StatusCode, raw, nil
}

func (c *Client) encode(p *payload.Payload) (io.Reader, string, error) {
	data, err := json.Marshal(p.Body)
	if err != nil {
		return nil, "", fmt.Errorf("submission: encode payload: %w", err)
	}
	if !p.HasAttachments() {
		return bytes.NewReader(data), "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(ApplicationDataPart, string(data)); err != nil {
		return nil, "", fmt.Errorf("submission: write %s: %w", ApplicationDataPart, err)
	}
	for _, attachment := range p.Attachments {
		if err := c.attach(mw, attachment); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("submission: close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func (c *Client) attach(mw *multipart.Writer, attachment payload.Attachment) error {
	rc, err := c.open(attachment.Path)
	if err != nil {
		return fmt.Errorf("submission: open attachment %s: %w", attachment.Role, err)
	}
	defer rc.Close()
	part, err := mw.CreateFormFile(attachment.Role, attachment.Name)
	if err != nil {
		return fmt.Errorf("submission: create part %s: %w", attachment.Role, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("submission: copy attachment %s: %w", attachment.Role, err)
	}
	return nil
}

type ack struct {
	id        string
	reference string
	status    string
}

func decodeAck(raw []byte) (ack, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return ack{}, err
	}
	out := ack{
		id:        stringify(doc["id"]),
		reference: stringify(doc["referenceNumber"]),
		status:    stringify(doc["status"]),
	}
	if out.id == "" && out.reference == "" {
		return ack{}, errors.New("response carries neither id nor referenceNumber")
	}
	return out, nil
}

func stringify(v any) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func sinkMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(body.Error)
}
