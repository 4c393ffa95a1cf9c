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

// Package wire converts tensors to and from the tensorwire frame:
//
//	offset 0               int32   shape_len
//	offset 4               4 bytes zero padding
//	offset 8               int64   shape[shape_len]
//	offset 8+8*shape_len   float32 payload (to end of buffer)
//
// All fields are little-endian. The payload carries no length prefix; its
// element count is the remaining byte length divided by 4.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/pkg/errors"

	"github.com/kserve/tensorwire/pkg/tensor"
)

const (
	// HeaderLen is the size of shape_len plus its padding word.
	HeaderLen = 8
	// DimLen is the size of one encoded dimension.
	DimLen = 8
	// ElementLen is the size of one encoded float32 element.
	ElementLen  = 4
	paddingWord = 0
)

// ErrMalformedFrame is matched by every Decode failure. Shape violations
// additionally match tensor.ErrShapeMismatch or tensor.ErrNegativeDimension.
var ErrMalformedFrame = errors.New("wire: malformed frame")

// FrameSize returns the encoded length of a tensor with shapeLen dimensions
// and the given number of elements.
func FrameSize(shapeLen int, elements int) int {
	return HeaderLen + DimLen*shapeLen + ElementLen*elements
}

// Encode serializes t into a newly allocated frame.
func Encode(t *tensor.Tensor) []byte {
	shape := t.Shape()
	data := t.Float32s()
	buf := make([]byte, FrameSize(len(shape), len(data)))

	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(len(shape))))
	binary.LittleEndian.PutUint32(buf[4:8], paddingWord)
	off := HeaderLen
	for _, d := range shape {
		binary.LittleEndian.PutUint64(buf[off:off+DimLen], uint64(d))
		off += DimLen
	}
	for _, v := range data {
		binary.LittleEndian.PutUint32(buf[off:off+ElementLen], math.Float32bits(v))
		off += ElementLen
	}
	return buf
}

// Decode parses a frame and reshapes its payload to the declared shape.
// Every failure matches ErrMalformedFrame.
func Decode(buf []byte) (*tensor.Tensor, error) {
	if len(buf) < HeaderLen {
		return nil, errors.Wrapf(ErrMalformedFrame, "buffer of %d bytes is shorter than the %d byte header", len(buf), HeaderLen)
	}
	shapeLen := int64(int32(binary.LittleEndian.Uint32(buf[0:4])))
	if shapeLen < 0 {
		return nil, errors.Wrapf(ErrMalformedFrame, "negative shape length %d", shapeLen)
	}
	payloadOff := int64(HeaderLen) + DimLen*shapeLen
	if int64(len(buf)) < payloadOff {
		return nil, errors.Wrapf(ErrMalformedFrame, "buffer of %d bytes cannot hold %d dimensions", len(buf), shapeLen)
	}
	payload := buf[payloadOff:]
	if len(payload)%ElementLen != 0 {
		return nil, errors.Wrapf(ErrMalformedFrame, "payload of %d bytes is not a multiple of %d", len(payload), ElementLen)
	}

	shape := make(tensor.Shape, shapeLen)
	for i := range shape {
		off := HeaderLen + DimLen*i
		shape[i] = int64(binary.LittleEndian.Uint64(buf[off : off+DimLen]))
	}
	data := make([]float32, len(payload)/ElementLen)
	for i := range data {
		off := ElementLen * i
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[off : off+ElementLen]))
	}

	t, err := tensor.FromFloat32s(data).Reshape(shape)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return t, nil
}

// DecodeReader reads r to the end and decodes the result.
func DecodeReader(r io.Reader) (*tensor.Tensor, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(buf)
}

// DecodeRequest decodes the full body of an inbound request.
func DecodeRequest(r *http.Request) (*tensor.Tensor, error) {
	if r.Body == nil {
		return Decode(nil)
	}
	defer r.Body.Close()
	return DecodeReader(r.Body)
}

// DecodeResponse decodes the full body of a response.
func DecodeResponse(resp *http.Response) (*tensor.Tensor, error) {
	defer resp.Body.Close()
	return DecodeReader(resp.Body)
}
