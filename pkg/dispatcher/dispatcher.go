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

// Package dispatcher serves tensorwire calls over HTTP. Each request is routed
// by the last segment of its URL path to a registered Handler, which receives
// the caller's session and the decoded request tensor, if any.
package dispatcher

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/metrics"
	"github.com/kserve/tensorwire/pkg/session"
	"github.com/kserve/tensorwire/pkg/tensor"
	"github.com/kserve/tensorwire/pkg/wire"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const unroutedLabel = "unrouted"

// Dispatcher is the http.Handler serving a Registry. Each request resolves its
// caller's session, decodes the optional request frame, runs the matched
// handler and writes its Result.
type Dispatcher struct {
	log            logr.Logger
	routes         *Registry
	sessions       *session.Store
	identityHeader string
	maxFrameBytes  int64
}

// Option configures a Dispatcher built by New.
type Option func(*Dispatcher)

// WithIdentityHeader sets the header carrying the caller identity.
func WithIdentityHeader(header string) Option {
	return func(d *Dispatcher) {
		d.identityHeader = header
	}
}

// WithMaxFrameBytes bounds the request body size. Zero or less disables the bound.
func WithMaxFrameBytes(n int64) Option {
	return func(d *Dispatcher) {
		d.maxFrameBytes = n
	}
}

// New returns a Dispatcher reading identities from constants.IdentityHeader
// and accepting bodies up to constants.DefaultMaxFrameBytes.
func New(routes *Registry, sessions *session.Store, log logr.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		log:            log,
		routes:         routes,
		sessions:       sessions,
		identityHeader: constants.IdentityHeader,
		maxFrameBytes:  constants.DefaultMaxFrameBytes,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RouteToken returns the last "/"-delimited segment of path.
func RouteToken(path string) string {
	return path[strings.LastIndexByte(path, '/')+1:]
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	token := RouteToken(r.URL.Path)
	log := d.log.WithValues("requestId", uuid.New().String(), "token", token)

	route := unroutedLabel
	status := http.StatusOK
	defer func() {
		metrics.RecordRequest(route, status, time.Since(start))
		log.V(1).Info("served request", "route", route, "status", status, "duration", time.Since(start))
	}()

	identity := r.Header.Get(d.identityHeader)
	sess := d.sessions.GetOrCreate(identity)

	input, err := d.readInput(w, r)
	if err != nil {
		status = statusForInputError(err)
		log.Error(err, "Failed to read request tensor", "identity", identity)
		http.Error(w, err.Error(), status)
		return
	}

	handler, matched, ok := d.routes.Lookup(token)
	if !ok {
		status = http.StatusNotFound
		log.Info("No route matched", "identity", identity)
		writeRoutingError(w, token)
		return
	}
	route = matched

	result, err := handler(r.Context(), sess, input)
	if err != nil {
		status = http.StatusInternalServerError
		log.Error(err, "Handler failed", "route", route, "identity", identity)
		http.Error(w, err.Error(), status)
		return
	}

	if status, err = writeResult(w, result); err != nil {
		log.Error(err, "Failed to write response", "route", route)
	}
}

// readInput returns the decoded request tensor, or nil for an empty body.
func (d *Dispatcher) readInput(w http.ResponseWriter, r *http.Request) (*tensor.Tensor, error) {
	if r.Body == nil {
		return nil, nil
	}
	body := r.Body
	if d.maxFrameBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, d.maxFrameBytes)
	}
	defer body.Close()

	buf, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, nil
	}
	metrics.RecordFrame(metrics.FrameIn, len(buf))
	return wire.Decode(buf)
}

func statusForInputError(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeRoutingError(w http.ResponseWriter, token string) {
	routingErr := &RoutingError{
		ErrorMessage: RouteNotFoundErrMsg,
		Cause:        fmt.Sprintf(RouteNotFoundCauseMsg, token, constants.DefaultRoute),
	}
	body, _ := json.Marshal(routingErr)
	w.Header().Set(constants.ContentTypeHeader, constants.JSONContentType)
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(body)
}

func writeResult(w http.ResponseWriter, result Result) (int, error) {
	var body []byte
	switch res := result.(type) {
	case nil:
	case TensorResult:
		body = encodeTensor(w, res.Tensor)
	case *TensorResult:
		if res != nil {
			body = encodeTensor(w, res.Tensor)
		}
	case OpaqueResult:
		b, err := opaqueBody(w, res.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return http.StatusInternalServerError, err
		}
		body = b
	case *OpaqueResult:
		if res != nil {
			return writeResult(w, *res)
		}
	}

	w.WriteHeader(http.StatusOK)
	if len(body) == 0 {
		return http.StatusOK, nil
	}
	_, err := w.Write(body)
	return http.StatusOK, err
}

func encodeTensor(w http.ResponseWriter, t *tensor.Tensor) []byte {
	if t == nil {
		return nil
	}
	body := wire.Encode(t)
	metrics.RecordFrame(metrics.FrameOut, len(body))
	w.Header().Set(constants.ContentTypeHeader, constants.FrameContentType)
	return body
}

func opaqueBody(w http.ResponseWriter, v interface{}) ([]byte, error) {
	switch value := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		w.Header().Set(constants.ContentTypeHeader, constants.BinaryContentType)
		return value, nil
	case string:
		w.Header().Set(constants.ContentTypeHeader, constants.TextContentType)
		return []byte(value), nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %T result: %w", v, err)
		}
		w.Header().Set(constants.ContentTypeHeader, constants.JSONContentType)
		return b, nil
	}
}
