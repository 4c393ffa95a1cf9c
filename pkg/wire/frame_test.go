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

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kserve/tensorwire/pkg/tensor"
)

func mustTensor(t *testing.T, shape tensor.Shape, data []float32) *tensor.Tensor {
	t.Helper()
	x, err := tensor.New(shape, data)
	require.NoError(t, err)
	return x
}

func TestEncodeMatrix(t *testing.T) {
	x := mustTensor(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	buf := Encode(x)
	require.Len(t, buf, 56)

	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[0:4]))
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[4:8])
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(buf[8:16]))
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(buf[16:24]))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[24:28])))
	assert.Equal(t, float32(6), math.Float32frombits(binary.LittleEndian.Uint32(buf[52:56])))

	decoded, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, decoded.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, decoded.Float32s())
}

func TestRoundTrip(t *testing.T) {
	scenarios := map[string]struct {
		shape tensor.Shape
		data  []float32
	}{
		"scalar":        {shape: tensor.Shape{}, data: []float32{42}},
		"emptyScalar":   {shape: tensor.Shape{}, data: []float32{}},
		"vector":        {shape: tensor.Shape{3}, data: []float32{-1.5, 0, 1.5}},
		"matrix":        {shape: tensor.Shape{2, 2}, data: []float32{1, 2, 3, 4}},
		"zeroLengthDim": {shape: tensor.Shape{0, 4}, data: []float32{}},
		"rank4":         {shape: tensor.Shape{1, 2, 1, 2}, data: []float32{9, 8, 7, 6}},
		"special":       {shape: tensor.Shape{3}, data: []float32{float32(math.Inf(1)), float32(math.Inf(-1)), math.MaxFloat32}},
	}
	for name, scenario := range scenarios {
		t.Run(name, func(t *testing.T) {
			x := mustTensor(t, scenario.shape, scenario.data)
			buf := Encode(x)
			assert.Equal(t, FrameSize(len(scenario.shape), len(scenario.data)), len(buf))

			got, err := Decode(buf)
			require.NoError(t, err)
			if diff := cmp.Diff([]int64(scenario.shape), []int64(got.Shape())); diff != "" {
				t.Errorf("Test %q unexpected shape (-want +got): %v", name, diff)
			}
			if diff := cmp.Diff(scenario.data, got.Float32s()); diff != "" {
				t.Errorf("Test %q unexpected payload (-want +got): %v", name, diff)
			}
		})
	}
}

func TestDecodeNaN(t *testing.T) {
	nan := float32(math.NaN())
	got, err := Decode(Encode(tensor.FromFloat32s([]float32{nan})))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(got.Float32s()[0])))
}

func header(shapeLen int32, dims ...int64) []byte {
	buf := make([]byte, HeaderLen+DimLen*len(dims))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(shapeLen))
	for i, d := range dims {
		binary.LittleEndian.PutUint64(buf[HeaderLen+DimLen*i:], uint64(d))
	}
	return buf
}

func TestDecodeMalformed(t *testing.T) {
	scenarios := map[string][]byte{
		"empty":              {},
		"shortHeader":        {1, 0, 0},
		"missingShape":       header(2, 3),
		"negativeShapeLen":   header(-1),
		"raggedPayload":      append(header(1, 1), 0, 0, 128),
		"countMismatch":      append(header(2, 2, 2), make([]byte, 4*3)...),
		"negativeDimension":  append(header(1, -1), make([]byte, 4)...),
		"scalarWithTwoItems": append(header(0), make([]byte, 8)...),
		"overflowingShape":   header(2, 1<<32, 1<<32),
		"wrappingNegative":   append(header(2, 1<<62, 4), make([]byte, 4)...),
	}
	for name, buf := range scenarios {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(buf)
			assert.Nil(t, got)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedFrame), "error %v is not ErrMalformedFrame", err)
		})
	}
}

func TestDecodeRequestAndResponse(t *testing.T) {
	x := mustTensor(t, tensor.Shape{2}, []float32{1, 2})

	r := httptest.NewRequest(http.MethodPost, "http://a/echo", bytes.NewReader(Encode(x)))
	got, err := DecodeRequest(r)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, got.Shape())

	resp := &http.Response{Body: io.NopCloser(bytes.NewReader(Encode(x)))}
	got, err = DecodeResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got.Float32s())

	_, err = DecodeReader(bytes.NewReader([]byte{1}))
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}

func TestDecodeKeepsShapeErrorInChain(t *testing.T) {
	_, err := Decode(append(header(2, 2, 2), make([]byte, 4*3)...))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))

	_, err = Decode(header(2, 1<<32, 1<<32))
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))

	_, err = Decode(append(header(1, -1), make([]byte, 4)...))
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.True(t, errors.Is(err, tensor.ErrNegativeDimension))
}
