// Package serialization saves and loads named tensors in the SafeTensors format:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header {name: {dtype, shape, data_offsets}, "__metadata__": {...}}]
//	[tensor data: little-endian elements in row-major order]
//
// Write stores the SHA-256 of the data section under the ChecksumKey metadata
// entry; Read verifies it when present.
package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"maps"
	"math"
	"math/bits"
	"os"
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/vmap/internal/tensor"
)

// ChecksumKey is the metadata entry holding the hex SHA-256 of the data section.
const ChecksumKey = "sha256"

const (
	metadataKey   = "__metadata__"
	maxHeaderSize = 100 << 20
)

type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteFile writes tensors and metadata to path, see Write.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %q", path)
	}
	if err := Write(f, tensors, metadata); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "writing %q", path)
	}
	return errors.Wrapf(f.Close(), "closing %q", path)
}

// Write encodes tensors in alphabetical order of their names. Tensors of any
// stride layout are written in logical row-major order.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	var data bytes.Buffer
	header := make(map[string]any, len(tensors)+1)
	for _, name := range slices.Sorted(maps.Keys(tensors)) {
		raw := tensors[name]
		if name == "" || name == metadataKey {
			return errors.Wrapf(ErrInvalidTensorName, "%q", name)
		}
		if raw == nil {
			return errors.Errorf("tensor %q is undefined", name)
		}
		dtype, err := dtypeName(raw.DType())
		if err != nil {
			return errors.WithMessagef(err, "tensor %q", name)
		}
		start := int64(data.Len())
		if err := writeElements(&data, raw); err != nil {
			return errors.Wrapf(err, "failed to encode tensor %q", name)
		}
		shape := make([]int64, raw.Rank())
		for i, dim := range raw.Shape() {
			shape[i] = int64(dim)
		}
		header[name] = tensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{start, int64(data.Len())}}
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	sum := sha256.Sum256(data.Bytes())
	meta[ChecksumKey] = hex.EncodeToString(sum[:])
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return errors.Wrap(err, "failed to write header size")
	}
	if _, err := w.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	_, err = w.Write(data.Bytes())
	return errors.Wrap(err, "failed to write tensor data")
}

// ReadFile reads a file written by WriteFile, see Read.
func ReadFile(path string) (map[string]*tensor.RawTensor, map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %q", path)
	}
	defer func() { _ = f.Close() }()
	tensors, metadata, err := Read(f)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "reading %q", path)
	}
	return tensors, metadata, nil
}

// Read decodes all tensors and the metadata of a SafeTensors stream.
func Read(r io.Reader) (map[string]*tensor.RawTensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header size")
	}
	if headerSize > maxHeaderSize {
		return nil, nil, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, errors.Wrap(err, "failed to read header")
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &entries); err != nil {
		return nil, nil, errors.Wrap(err, "failed to parse header JSON")
	}
	metadata := make(map[string]string)
	if msg, found := entries[metadataKey]; found {
		if err := json.Unmarshal(msg, &metadata); err != nil {
			return nil, nil, errors.Wrap(err, "failed to parse metadata")
		}
		delete(entries, metadataKey)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to read tensor data")
	}
	if want, found := metadata[ChecksumKey]; found {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != want {
			return nil, nil, errors.Wrapf(ErrChecksumMismatch, "got %s, header says %s", got, want)
		}
	}

	tensors := make(map[string]*tensor.RawTensor, len(entries))
	for name, msg := range entries {
		var h tensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, errors.Wrapf(err, "failed to parse header of tensor %q", name)
		}
		start, end := h.DataOffsets[0], h.DataOffsets[1]
		if start < 0 || end < start {
			return nil, nil, errors.Wrapf(ErrNegativeOffset, "tensor %q: offsets %v", name, h.DataOffsets)
		}
		if end > int64(len(data)) {
			return nil, nil, errors.Wrapf(ErrOutOfBounds, "tensor %q ends at %d, data has %d bytes", name, end, len(data))
		}
		dt, err := dtypeOf(h.DType)
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q", name)
		}
		if err := checkElementCount(h.Shape, dt.Size(), end-start); err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q", name)
		}
		shape := make(tensor.Shape, len(h.Shape))
		for i, dim := range h.Shape {
			shape[i] = int(dim)
		}
		raw, err := decode(dt, shape, data[start:end])
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "tensor %q", name)
		}
		tensors[name] = raw
	}
	return tensors, metadata, nil
}

func dtypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	case tensor.Int32:
		return "I32", nil
	case tensor.Int64:
		return "I64", nil
	case tensor.Uint8:
		return "U8", nil
	case tensor.Bool:
		return "BOOL", nil
	}
	return "", errors.Wrapf(ErrUnsupportedDType, "%s", dt)
}

func writeElements(w io.Writer, raw *tensor.RawTensor) error {
	switch raw.DType() {
	case tensor.Float32:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[float32](raw))
	case tensor.Float64:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[float64](raw))
	case tensor.Int32:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[int32](raw))
	case tensor.Int64:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[int64](raw))
	case tensor.Uint8:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[uint8](raw))
	case tensor.Bool:
		return binary.Write(w, binary.LittleEndian, tensor.ToSlice[bool](raw))
	}
	return errors.Wrapf(ErrUnsupportedDType, "%s", raw.DType())
}

func dtypeOf(name string) (tensor.DataType, error) {
	switch name {
	case "F32":
		return tensor.Float32, nil
	case "F64":
		return tensor.Float64, nil
	case "I32":
		return tensor.Int32, nil
	case "I64":
		return tensor.Int64, nil
	case "U8":
		return tensor.Uint8, nil
	case "BOOL":
		return tensor.Bool, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedDType, "%q", name)
}

// checkElementCount verifies that dims describe exactly nbytes of elements of
// elemSize bytes each, without overflowing on hostile shapes.
func checkElementCount(dims []int64, elemSize int, nbytes int64) error {
	limit := uint64(math.MaxInt64 / int64(elemSize))
	count, empty := uint64(1), false
	for _, dim := range dims {
		switch {
		case dim < 0:
			return errors.Errorf("invalid shape %v: negative dimension", dims)
		case dim == 0:
			empty = true
		default:
			hi, lo := bits.Mul64(count, uint64(dim))
			if hi != 0 || lo > limit {
				return errors.Wrapf(ErrOutOfBounds, "shape %v overflows the element count", dims)
			}
			count = lo
		}
	}
	if empty {
		count = 0
	}
	if size := int64(count) * int64(elemSize); size != nbytes {
		return errors.Wrapf(ErrOutOfBounds, "shape %v needs %d bytes, got %d", dims, size, nbytes)
	}
	return nil
}

func decode(dt tensor.DataType, shape tensor.Shape, buf []byte) (*tensor.RawTensor, error) {
	switch dt {
	case tensor.Float32:
		return decodeTyped[float32](shape, buf)
	case tensor.Float64:
		return decodeTyped[float64](shape, buf)
	case tensor.Int32:
		return decodeTyped[int32](shape, buf)
	case tensor.Int64:
		return decodeTyped[int64](shape, buf)
	case tensor.Uint8:
		return decodeTyped[uint8](shape, buf)
	case tensor.Bool:
		return decodeTyped[bool](shape, buf)
	}
	return nil, errors.Wrapf(ErrUnsupportedDType, "%s", dt)
}

func decodeTyped[T tensor.DType](shape tensor.Shape, buf []byte) (*tensor.RawTensor, error) {
	values := make([]T, shape.NumElements())
	if size := binary.Size(values); size != len(buf) {
		return nil, errors.Wrapf(ErrOutOfBounds, "shape %v needs %d bytes, got %d", shape, size, len(buf))
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, values); err != nil {
		return nil, errors.Wrap(err, "failed to decode elements")
	}
	return tensor.FromSlice(values, shape)
}
