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
	"context"

	"github.com/pkg/errors"

	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/session"
	"github.com/kserve/tensorwire/pkg/tensor"
)

// Handler serves one route. input is nil when the request carried no body.
type Handler func(ctx context.Context, sess *session.Session, input *tensor.Tensor) (Result, error)

// Route binds a route token to its handler. The token constants.DefaultRoute
// registers the fallback handler.
type Route struct {
	Token   string
	Handler Handler
}

// Registry is the immutable route table of a Dispatcher.
type Registry struct {
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry builds the route table, rejecting empty tokens, nil handlers and
// duplicate tokens.
func NewRegistry(routes ...Route) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(routes))}
	for _, route := range routes {
		if route.Token == "" {
			return nil, errors.New("route token must not be empty")
		}
		if route.Handler == nil {
			return nil, errors.Errorf("route %q has no handler", route.Token)
		}
		if route.Token == constants.DefaultRoute {
			if r.fallback != nil {
				return nil, errors.Errorf("duplicate route %q", route.Token)
			}
			r.fallback = route.Handler
			continue
		}
		if _, ok := r.handlers[route.Token]; ok {
			return nil, errors.Errorf("duplicate route %q", route.Token)
		}
		r.handlers[route.Token] = route.Handler
	}
	return r, nil
}

// Lookup returns the handler for token, falling back to the default route.
// The returned name is the route actually chosen, for logging and metrics.
func (r *Registry) Lookup(token string) (Handler, string, bool) {
	if h, ok := r.handlers[token]; ok {
		return h, token, true
	}
	if r.fallback != nil {
		return r.fallback, constants.DefaultRoute, true
	}
	return nil, "", false
}

// Len returns the number of registered routes, the fallback included.
func (r *Registry) Len() int {
	n := len(r.handlers)
	if r.fallback != nil {
		n++
	}
	return n
}
