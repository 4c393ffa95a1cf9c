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

package main

import (
	"context"

	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/dispatcher"
	"github.com/kserve/tensorwire/pkg/session"
	"github.com/kserve/tensorwire/pkg/tensor"
)

const callCountKey = "calls"

func builtinRoutes() []dispatcher.Route {
	return []dispatcher.Route{
		{Token: "ping", Handler: ping},
		{Token: "echo", Handler: echo},
		{Token: "sum", Handler: sum},
		{Token: "count", Handler: count},
		{Token: constants.DefaultRoute, Handler: describe},
	}
}

func ping(context.Context, *session.Session, *tensor.Tensor) (dispatcher.Result, error) {
	return dispatcher.Opaque("pong"), nil
}

func echo(_ context.Context, _ *session.Session, input *tensor.Tensor) (dispatcher.Result, error) {
	return dispatcher.Tensor(input), nil
}

// sum reduces the input to a scalar. No input sums to zero.
func sum(_ context.Context, _ *session.Session, input *tensor.Tensor) (dispatcher.Result, error) {
	var total float32
	if input != nil {
		for _, v := range input.Float32s() {
			total += v
		}
	}
	return dispatcher.Tensor(tensor.Scalar(total)), nil
}

// count reports how many times the calling session has hit this route.
func count(_ context.Context, sess *session.Session, _ *tensor.Tensor) (dispatcher.Result, error) {
	var n int
	sess.Update(func(data map[string]interface{}) {
		n, _ = data[callCountKey].(int)
		n++
		data[callCountKey] = n
	})
	return dispatcher.Opaque(map[string]interface{}{
		"identity": sess.ID(),
		"calls":    n,
	}), nil
}

// describe answers any unknown route with what it received.
func describe(_ context.Context, sess *session.Session, input *tensor.Tensor) (dispatcher.Result, error) {
	reply := map[string]interface{}{
		"route":    constants.DefaultRoute,
		"identity": sess.ID(),
	}
	if input != nil {
		reply["shape"] = []int64(input.Shape())
		reply["elements"] = input.NumElements()
	}
	return dispatcher.Opaque(reply), nil
}
