// Package safetensors reads and writes the safetensors container used for
// exported model weights: an 8-byte little-endian header length, a JSON
// header describing every tensor, then the raw tensor bytes.
package safetensors

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"
)

const metadataKey = "__metadata__"

// maxHeaderLen guards against allocating for a corrupt length prefix.
const maxHeaderLen = 100 << 20

// dtype describes how one element of a stored dtype widens to float32.
type dtype struct {
	size   int
	decode func(b []byte) float32
}

var dtypes = map[string]dtype{
	"F32": {4, func(b []byte) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}},
	"F64": {8, func(b []byte) float32 {
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}},
	"F16": {2, func(b []byte) float32 {
		return halfToFloat32(binary.LittleEndian.Uint16(b))
	}},
	"BF16": {2, func(b []byte) float32 {
		return math.Float32frombits(uint32(binary.LittleEndian.Uint16(b)) << 16)
	}},
}

// TensorInfo locates one tensor. Start and End are relative to DataStart.
type TensorInfo struct {
	DType string
	Shape []int
	Start int64
	End   int64
}

// File is a parsed header. Tensor bytes stay on disk until read.
type File struct {
	Path      string
	DataStart int64
	DataSize  int64
	Tensors   map[string]TensorInfo
	Metadata  map[string]string
}

type tensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int   `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// Open parses and validates the header of the file at path. Every tensor
// must lie inside the data section, and tensors of a known dtype must span
// exactly shape*size bytes.
func Open(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()

	st, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	var lenBuf [8]byte
	if _, err := io.ReadFull(fh, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	headerLen := binary.LittleEndian.Uint64(lenBuf[:])
	if headerLen > maxHeaderLen || int64(headerLen) > st.Size()-8 {
		return nil, fmt.Errorf("header length %d exceeds file or limit", headerLen)
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(fh, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(header, &raw); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	f := &File{
		Path:      path,
		DataStart: 8 + int64(headerLen),
		Tensors:   make(map[string]TensorInfo, len(raw)),
	}
	f.DataSize = st.Size() - f.DataStart

	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.Metadata); err != nil {
				return nil, fmt.Errorf("parse %s: %w", metadataKey, err)
			}
			continue
		}
		var th tensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			return nil, fmt.Errorf("parse tensor %s: %w", name, err)
		}
		info, err := f.check(th)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		f.Tensors[name] = info
	}
	return f, nil
}

func (f *File) check(th tensorHeader) (TensorInfo, error) {
	if len(th.DataOffsets) != 2 {
		return TensorInfo{}, fmt.Errorf("invalid data_offsets %v", th.DataOffsets)
	}
	info := TensorInfo{DType: th.DType, Shape: th.Shape, Start: th.DataOffsets[0], End: th.DataOffsets[1]}
	if info.Start < 0 || info.End < info.Start || info.End > f.DataSize {
		return TensorInfo{}, fmt.Errorf("offsets [%d, %d) outside data section of %d bytes", info.Start, info.End, f.DataSize)
	}
	if dt, ok := dtypes[info.DType]; ok {
		n, err := numElements(info.Shape)
		if err != nil {
			return TensorInfo{}, err
		}
		if want := int64(n) * int64(dt.size); info.End-info.Start != want {
			return TensorInfo{}, fmt.Errorf("%s %v needs %d bytes, header gives %d", info.DType, info.Shape, want, info.End-info.Start)
		}
	}
	return info, nil
}

func (f *File) Tensor(name string) (TensorInfo, bool) {
	t, ok := f.Tensors[name]
	return t, ok
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReadTensor returns the raw bytes of a tensor.
func (f *File) ReadTensor(name string) ([]byte, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	defer func() { _ = fh.Close() }()

	buf := make([]byte, t.End-t.Start)
	if _, err := io.ReadFull(io.NewSectionReader(fh, f.DataStart+t.Start, int64(len(buf))), buf); err != nil {
		return nil, TensorInfo{}, fmt.Errorf("read tensor %s: %w", name, err)
	}
	return buf, t, nil
}

// ReadTensorF32 reads a floating point tensor of any supported dtype as float32.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor not found: %s", name)
	}
	dt, ok := dtypes[t.DType]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: unsupported dtype %s", name, t.DType)
	}
	raw, _, err := f.ReadTensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	out := make([]float32, len(raw)/dt.size)
	for i := range out {
		out[i] = dt.decode(raw[i*dt.size:])
	}
	return out, t, nil
}

// ReadShaped reads a tensor and checks it has exactly the given shape.
func (f *File) ReadShaped(name string, shape ...int) ([]float32, error) {
	t, ok := f.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}
	if !slices.Equal(t.Shape, shape) {
		return nil, fmt.Errorf("tensor %s: shape %v, want %v", name, t.Shape, shape)
	}
	data, _, err := f.ReadTensorF32(name)
	return data, err
}

// numElements is the product of shape. The empty shape is a scalar and a zero
// dim makes an empty tensor.
func numElements(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("invalid dim %d", d)
		}
		if d > 0 && n > math.MaxInt/d {
			return 0, fmt.Errorf("shape %v overflows", shape)
		}
		n *= d
	}
	return n, nil
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := 1.0
	if h&0x8000 != 0 {
		sign = -1
	}
	exp := int(h>>10) & 0x1f
	frac := float64(h & 0x3ff)
	switch exp {
	case 0:
		return float32(sign * math.Ldexp(frac, -24))
	case 0x1f:
		if frac != 0 {
			return float32(math.NaN())
		}
		return float32(math.Inf(int(sign)))
	default:
		return float32(sign * math.Ldexp(1+frac/1024, exp-15))
	}
}
