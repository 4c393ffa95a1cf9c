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

package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/session"
	"github.com/kserve/tensorwire/pkg/tensor"
	"github.com/kserve/tensorwire/pkg/wire"
)

type call struct {
	id    string
	input *tensor.Tensor
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (rec *recorder) handler(result Result) Handler {
	return func(_ context.Context, sess *session.Session, input *tensor.Tensor) (Result, error) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.calls = append(rec.calls, call{id: sess.ID(), input: input})
		return result, nil
	}
}

func newTestDispatcher(g *gomega.WithT, routes []Route, opts ...Option) *Dispatcher {
	registry, err := NewRegistry(routes...)
	g.Expect(err).ToNot(gomega.HaveOccurred())
	store, err := session.NewStore(session.Options{}, logr.Discard())
	g.Expect(err).ToNot(gomega.HaveOccurred())
	return New(registry, store, logr.Discard(), opts...)
}

func serve(d http.Handler, method, path, identity string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	r := httptest.NewRequest(method, path, reader)
	if identity != "" {
		r.Header.Set(constants.IdentityHeader, identity)
	}
	w := httptest.NewRecorder()
	d.ServeHTTP(w, r)
	return w
}

func TestPingWithEmptyBody(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	rec := &recorder{}
	d := newTestDispatcher(g, []Route{{Token: "ping", Handler: rec.handler(Opaque("pong"))}})

	w := serve(d, http.MethodGet, "http://localhost/ping", "abc", nil)

	g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
	g.Expect(w.Body.String()).To(gomega.Equal("pong"))
	g.Expect(rec.calls).To(gomega.HaveLen(1))
	g.Expect(rec.calls[0].id).To(gomega.Equal("abc"))
	g.Expect(rec.calls[0].input).To(gomega.BeNil())
}

func TestEchoTensor(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	echo := func(_ context.Context, _ *session.Session, input *tensor.Tensor) (Result, error) {
		return Tensor(input), nil
	}
	d := newTestDispatcher(g, []Route{{Token: "echo", Handler: echo}})

	x, err := tensor.New(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	g.Expect(err).ToNot(gomega.HaveOccurred())
	w := serve(d, http.MethodPost, "http://localhost/v1/echo", "abc", wire.Encode(x))

	g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
	g.Expect(w.Header().Get(constants.ContentTypeHeader)).To(gomega.Equal(constants.FrameContentType))
	g.Expect(w.Body.Len()).To(gomega.Equal(56))
	got, err := wire.Decode(w.Body.Bytes())
	g.Expect(err).ToNot(gomega.HaveOccurred())
	g.Expect(got.Shape()).To(gomega.Equal(tensor.Shape{2, 3}))
	g.Expect(got.Float32s()).To(gomega.Equal([]float32{1, 2, 3, 4, 5, 6}))
}

func TestSessionStableAcrossCalls(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	count := func(_ context.Context, sess *session.Session, _ *tensor.Tensor) (Result, error) {
		var n int
		sess.Update(func(data map[string]interface{}) {
			n, _ = data["count"].(int)
			n++
			data["count"] = n
		})
		return Opaque(map[string]interface{}{"id": sess.ID(), "count": n}), nil
	}
	d := newTestDispatcher(g, []Route{{Token: "count", Handler: count}})

	sequence := []struct {
		identity string
		expected int64
	}{
		{identity: "a", expected: 1},
		{identity: "b", expected: 1},
		{identity: "a", expected: 2},
		{identity: "c", expected: 1},
		{identity: "b", expected: 2},
		{identity: "a", expected: 3},
	}
	for _, step := range sequence {
		w := serve(d, http.MethodGet, "http://localhost/count", step.identity, nil)
		g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		g.Expect(w.Header().Get(constants.ContentTypeHeader)).To(gomega.Equal(constants.JSONContentType))
		body := w.Body.String()
		g.Expect(gjson.Get(body, "id").String()).To(gomega.Equal(step.identity))
		g.Expect(gjson.Get(body, "count").Int()).To(gomega.Equal(step.expected))
	}
}

func TestRoutingPrecedence(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	d := newTestDispatcher(g, []Route{
		{Token: "ping", Handler: (&recorder{}).handler(Opaque("ping"))},
		{Token: constants.DefaultRoute, Handler: (&recorder{}).handler(Opaque("default"))},
	})

	scenarios := map[string]struct {
		path     string
		expected string
	}{
		"exactMatch":      {path: "http://localhost/ping", expected: "ping"},
		"nestedMatch":     {path: "http://localhost/a/b/ping", expected: "ping"},
		"fallback":        {path: "http://localhost/pong", expected: "default"},
		"prefixIsNoMatch": {path: "http://localhost/ping/extra", expected: "default"},
		"trailingSlash":   {path: "http://localhost/ping/", expected: "default"},
		"queryIgnored":    {path: "http://localhost/ping?x=1", expected: "ping"},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			g := gomega.NewGomegaWithT(t)
			w := serve(d, http.MethodGet, scenario.path, "abc", nil)
			g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			g.Expect(w.Body.String()).To(gomega.Equal(scenario.expected))
		})
	}
}

func TestUnroutableRequest(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	d := newTestDispatcher(g, []Route{{Token: "ping", Handler: (&recorder{}).handler(nil)}})

	w := serve(d, http.MethodGet, "http://localhost/missing", "abc", nil)

	g.Expect(w.Code).To(gomega.Equal(http.StatusNotFound))
	body := w.Body.String()
	g.Expect(gjson.Get(body, "error").String()).To(gomega.Equal(RouteNotFoundErrMsg))
	g.Expect(gjson.Get(body, "cause").String()).To(gomega.ContainSubstring(`"missing"`))
}

func TestMalformedFrameIsRejected(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	rec := &recorder{}
	d := newTestDispatcher(g, []Route{{Token: "echo", Handler: rec.handler(nil)}})

	w := serve(d, http.MethodPost, "http://localhost/echo", "abc", []byte{2, 0, 0, 0, 0, 0, 0, 0, 1})

	g.Expect(w.Code).To(gomega.Equal(http.StatusBadRequest))
	g.Expect(w.Body.String()).To(gomega.ContainSubstring("malformed frame"))
	g.Expect(rec.calls).To(gomega.BeEmpty())
}

func TestFrameTooLarge(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	rec := &recorder{}
	d := newTestDispatcher(g, []Route{{Token: "echo", Handler: rec.handler(nil)}}, WithMaxFrameBytes(16))

	x := tensor.FromFloat32s(make([]float32, 16))
	w := serve(d, http.MethodPost, "http://localhost/echo", "abc", wire.Encode(x))

	g.Expect(w.Code).To(gomega.Equal(http.StatusRequestEntityTooLarge))
	g.Expect(rec.calls).To(gomega.BeEmpty())
}

func TestHandlerError(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	failing := func(_ context.Context, _ *session.Session, _ *tensor.Tensor) (Result, error) {
		return nil, errors.New("model exploded")
	}
	d := newTestDispatcher(g, []Route{{Token: "fail", Handler: failing}})

	w := serve(d, http.MethodGet, "http://localhost/fail", "abc", nil)

	g.Expect(w.Code).To(gomega.Equal(http.StatusInternalServerError))
	g.Expect(w.Body.String()).To(gomega.ContainSubstring("model exploded"))
}

func TestResultVariants(t *testing.T) {
	scalar := tensor.Scalar(2)
	scenarios := map[string]struct {
		result      Result
		body        []byte
		contentType string
	}{
		"nothing":       {result: nil, body: nil},
		"nilTensor":     {result: Tensor(nil), body: nil},
		"tensor":        {result: Tensor(scalar), body: wire.Encode(scalar), contentType: constants.FrameContentType},
		"tensorPointer": {result: &TensorResult{Tensor: scalar}, body: wire.Encode(scalar), contentType: constants.FrameContentType},
		"bytes":         {result: Opaque([]byte{1, 2, 3}), body: []byte{1, 2, 3}, contentType: constants.BinaryContentType},
		"bytesAsText":   {result: Opaque([]byte("hello")), body: []byte("hello"), contentType: constants.BinaryContentType},
		"string":        {result: Opaque("hello"), body: []byte("hello"), contentType: constants.TextContentType},
		"nilOpaque":     {result: Opaque(nil), body: nil},
		"json":          {result: &OpaqueResult{Value: []int{1, 2}}, body: []byte("[1,2]"), contentType: constants.JSONContentType},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			g := gomega.NewGomegaWithT(t)
			d := newTestDispatcher(g, []Route{{Token: "r", Handler: (&recorder{}).handler(scenario.result)}})
			w := serve(d, http.MethodGet, "http://localhost/r", "abc", nil)
			g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			if scenario.body == nil {
				g.Expect(w.Body.Len()).To(gomega.Equal(0))
			} else {
				g.Expect(w.Body.Bytes()).To(gomega.Equal(scenario.body))
			}
			if scenario.contentType != "" {
				g.Expect(w.Header().Get(constants.ContentTypeHeader)).To(gomega.Equal(scenario.contentType))
			}
		})
	}
}

func TestUnserializableOpaqueResult(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	d := newTestDispatcher(g, []Route{{Token: "r", Handler: (&recorder{}).handler(Opaque(make(chan int)))}})

	w := serve(d, http.MethodGet, "http://localhost/r", "abc", nil)

	g.Expect(w.Code).To(gomega.Equal(http.StatusInternalServerError))
}

func TestConcurrentCallsShareOneSession(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	var mu sync.Mutex
	seen := map[*session.Session]struct{}{}
	track := func(_ context.Context, sess *session.Session, _ *tensor.Tensor) (Result, error) {
		mu.Lock()
		defer mu.Unlock()
		seen[sess] = struct{}{}
		return nil, nil
	}
	d := newTestDispatcher(g, []Route{{Token: "track", Handler: track}})

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := serve(d, http.MethodGet, fmt.Sprintf("http://localhost/%d/track", i), "same", nil)
			g.Expect(w.Code).To(gomega.Equal(http.StatusOK))
		}()
	}
	wg.Wait()
	g.Expect(seen).To(gomega.HaveLen(1))
}

func TestIdentityHeaderOption(t *testing.T) {
	g := gomega.NewGomegaWithT(t)
	rec := &recorder{}
	d := newTestDispatcher(g, []Route{{Token: "ping", Handler: rec.handler(nil)}}, WithIdentityHeader("X-Caller"))

	r := httptest.NewRequest(http.MethodGet, "http://localhost/ping", nil)
	r.Header.Set("X-Caller", "custom")
	d.ServeHTTP(httptest.NewRecorder(), r)
	serve(d, http.MethodGet, "http://localhost/ping", "", nil)

	g.Expect(rec.calls).To(gomega.HaveLen(2))
	g.Expect(rec.calls[0].id).To(gomega.Equal("custom"))
	g.Expect(rec.calls[1].id).To(gomega.Equal(""))
}
