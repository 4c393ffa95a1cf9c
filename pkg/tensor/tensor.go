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

// Package tensor provides the dense float32 tensor exchanged by tensorwire
// clients and servers. It carries only what the transport needs: a shape and
// a row-major flat view of the elements.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

var (
	ErrShapeMismatch     = errors.New("tensor: element count does not match shape")
	ErrNegativeDimension = errors.New("tensor: negative dimension")
)

// Shape is the ordered list of dimension sizes. The empty shape is a scalar.
type Shape []int64

// NumElements returns the product of the dimensions, 1 for the empty shape.
// It returns -1 when a dimension is negative or the product overflows int64.
func (s Shape) NumElements() int64 {
	n, ok := s.product()
	if !ok {
		return -1
	}
	return n
}

func (s Shape) product() (int64, bool) {
	n := int64(1)
	for _, d := range s {
		if d < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(uint64(n), uint64(d))
		if hi != 0 || lo > math.MaxInt64 {
			return 0, false
		}
		n = int64(lo)
	}
	return n, true
}

// Validate rejects negative dimensions.
func (s Shape) Validate() error {
	for i, d := range s {
		if d < 0 {
			return fmt.Errorf("%w: dim %d is %d", ErrNegativeDimension, i, d)
		}
	}
	return nil
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Tensor is an immutable-by-convention dense float32 tensor.
type Tensor struct {
	shape Shape
	data  []float32
}

// FromFloat32s builds a flat, one dimensional tensor over data. The slice is
// not copied.
func FromFloat32s(data []float32) *Tensor {
	return &Tensor{
		shape: Shape{int64(len(data))},
		data:  data,
	}
}

// New builds a tensor with the given shape, failing when the element count
// does not match.
func New(shape Shape, data []float32) (*Tensor, error) {
	return FromFloat32s(data).Reshape(shape)
}

// Scalar builds a rank zero tensor holding v.
func Scalar(v float32) *Tensor {
	return &Tensor{shape: Shape{}, data: []float32{v}}
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Float32s returns the flat row-major view of the elements. Callers must not
// modify it.
func (t *Tensor) Float32s() []float32 {
	return t.data
}

// NumElements returns the number of stored elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Reshape returns a tensor sharing t's elements with a new shape. The empty
// shape accepts one element (a scalar) or none (the empty tensor).
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	n := int64(len(t.data))
	if len(shape) == 0 {
		if n > 1 {
			return nil, fmt.Errorf("%w: %d elements into scalar shape", ErrShapeMismatch, n)
		}
		return &Tensor{shape: Shape{}, data: t.data}, nil
	}
	want, ok := shape.product()
	if !ok {
		return nil, fmt.Errorf("%w: element count of shape %v overflows int64", ErrShapeMismatch, []int64(shape))
	}
	if want != n {
		return nil, fmt.Errorf("%w: %d elements into shape %v", ErrShapeMismatch, n, []int64(shape))
	}
	return &Tensor{shape: shape.Clone(), data: t.data}, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, elements=%d)", []int64(t.shape), len(t.data))
}
