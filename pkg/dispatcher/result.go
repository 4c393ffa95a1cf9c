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
	"github.com/kserve/tensorwire/pkg/tensor"
)

// Result is what a Handler returns. It is either a TensorResult, written as a
// tensor frame, or an OpaqueResult, written without frame encoding. A nil
// Result produces an empty response body.
type Result interface {
	isResult()
}

// TensorResult is written as a tensor frame. A nil Tensor gives an empty body.
type TensorResult struct {
	Tensor *tensor.Tensor
}

// OpaqueResult carries a non-tensor value. []byte and string values are
// written as-is; other values are serialized as JSON.
type OpaqueResult struct {
	Value interface{}
}

func (TensorResult) isResult() {}
func (OpaqueResult) isResult() {}

// Tensor wraps t as a TensorResult.
func Tensor(t *tensor.Tensor) Result {
	return TensorResult{Tensor: t}
}

// Opaque wraps v as an OpaqueResult.
func Opaque(v interface{}) Result {
	return OpaqueResult{Value: v}
}
