/*
Copyright 2026 The KServe Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package client calls tensorwire dispatchers. Every call carries the
// process identity so that the dispatcher keeps one session per client
// process.
package client

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/metrics"
	"github.com/kserve/tensorwire/pkg/tensor"
	"github.com/kserve/tensorwire/pkg/wire"
)

const identityLen = 8

// ProcessIdentity returns the identity shared by every call from this
// process: the first eight hex digits of sha256(pid || start time).
var ProcessIdentity = sync.OnceValue(func() string {
	seed := strconv.Itoa(os.Getpid()) + strconv.FormatInt(time.Now().UnixNano(), 10)
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:identityLen]
})

// StatusError is returned for a response outside the 2xx range.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("tensorwire call failed: %s", e.Status)
	}
	return fmt.Sprintf("tensorwire call failed: %s: %s", e.Status, bytes.TrimSpace(e.Body))
}

// Client sends tensors to dispatcher routes. A Client is safe for concurrent
// use; all of its calls present the same identity.
type Client struct {
	httpClient     *http.Client
	identity       string
	identityHeader string
	log            logr.Logger
	timeout        time.Duration
	h2c            bool
}

// Option configures a Client built by New.
type Option func(*Client)

// WithHTTPClient sends calls through c. It takes precedence over WithTimeout
// and WithH2C.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithIdentity overrides the process identity.
func WithIdentity(identity string) Option {
	return func(cl *Client) {
		cl.identity = identity
	}
}

// WithIdentityHeader names the header carrying the identity.
func WithIdentityHeader(header string) Option {
	return func(cl *Client) {
		cl.identityHeader = header
	}
}

// WithLogger logs each call at V(1).
func WithLogger(log logr.Logger) Option {
	return func(cl *Client) {
		cl.log = log
	}
}

// WithTimeout bounds each call, dialing included. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = timeout
	}
}

// WithH2C speaks cleartext HTTP/2 with prior knowledge, as accepted by
// `tensorwire serve`. Endpoints must use the http scheme.
func WithH2C() Option {
	return func(cl *Client) {
		cl.h2c = true
	}
}

// New builds a Client presenting ProcessIdentity in the X-Request-ID header
// over HTTP/1.1, unless options say otherwise.
func New(opts ...Option) *Client {
	c := &Client{
		identity:       ProcessIdentity(),
		identityHeader: constants.IdentityHeader,
		log:            logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: c.transport(),
			Timeout:   c.timeout,
		}
	}
	return c
}

func (c *Client) transport() http.RoundTripper {
	connTimeout := DefaultConnTimeout
	if c.timeout > 0 {
		connTimeout = min(c.timeout, DefaultConnTimeout)
	}
	if c.h2c {
		return NewH2CTransport(connTimeout)
	}
	return NewHTTPTransport(connTimeout)
}

// Identity returns the identity sent with every call.
func (c *Client) Identity() string {
	return c.identity
}

// Call sends input to endpoint and decodes the reply. A nil input is sent as
// a GET with no body. An empty reply yields a nil tensor and no error. A
// transport failure is returned as-is; a non-2xx reply as *StatusError.
func (c *Client) Call(ctx context.Context, endpoint string, input *tensor.Tensor) (*tensor.Tensor, error) {
	reply, err := c.CallRaw(ctx, endpoint, input)
	if err != nil {
		return nil, err
	}
	if len(reply.Body) == 0 {
		return nil, nil
	}
	return wire.Decode(reply.Body)
}

// Reply is an undecoded 2xx response.
type Reply struct {
	ContentType string
	Body        []byte
}

// IsFrame reports whether the body is a tensor frame, judged by its media
// type.
func (r *Reply) IsFrame() bool {
	mediaType, _, err := mime.ParseMediaType(r.ContentType)
	return err == nil && mediaType == constants.FrameContentType
}

// CallRaw is Call without decoding the reply, for routes answering with
// non-tensor values.
func (c *Client) CallRaw(ctx context.Context, endpoint string, input *tensor.Tensor) (*Reply, error) {
	method := http.MethodGet
	var body io.Reader
	if input != nil {
		frame := wire.Encode(input)
		metrics.RecordFrame(metrics.FrameOut, len(frame))
		method = http.MethodPost
		body = bytes.NewReader(frame)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.identityHeader, c.identity)
	if input != nil {
		req.Header.Set(constants.ContentTypeHeader, constants.FrameContentType)
	}

	c.log.V(1).Info("Calling dispatcher", "endpoint", endpoint, "method", method, "identity", c.identity)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: data}
	}
	reply := &Reply{ContentType: resp.Header.Get(constants.ContentTypeHeader), Body: data}
	if reply.IsFrame() {
		metrics.RecordFrame(metrics.FrameIn, len(data))
	}
	return reply, nil
}

// DefaultClient is used by the package level Call.
var DefaultClient = New()

// Call sends input to endpoint with DefaultClient.
func Call(ctx context.Context, endpoint string, input *tensor.Tensor) (*tensor.Tensor, error) {
	return DefaultClient.Call(ctx, endpoint, input)
}
