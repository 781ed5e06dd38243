package models

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/taigrr/diorama/pkg/math3d"
)

// accessorView resolves the bytes behind an accessor: the buffer slice
// starting at its first element, the element stride and element count.
func accessorView(doc *gltf.Document, idx int) (data []byte, stride, count int, acc *gltf.Accessor, err error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, 0, 0, nil, fmt.Errorf("accessor %d out of range", idx)
	}
	acc = doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, 0, 0, acc, errors.New("accessor has no buffer view")
	}

	bv := doc.BufferViews[*acc.BufferView]
	buf := doc.Buffers[bv.Buffer]
	if buf.Data == nil {
		return nil, 0, 0, acc, errors.New("buffer has no data")
	}

	elem := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elem == 0 {
		return nil, 0, 0, acc, fmt.Errorf("unsupported accessor %v / %v", acc.Type, acc.ComponentType)
	}
	stride = bv.ByteStride
	if stride == 0 {
		stride = elem
	}

	start := bv.ByteOffset + acc.ByteOffset
	end := start + stride*(acc.Count-1) + elem
	if acc.Count == 0 {
		end = start
	}
	if start < 0 || end > len(buf.Data) {
		return nil, 0, 0, acc, fmt.Errorf("accessor %d overruns its buffer", idx)
	}
	return buf.Data[start:end], stride, acc.Count, acc, nil
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4
	}
	return 0
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4:
		return 4
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

// readComponent decodes one component as float64, applying the glTF
// normalization rules for integer types when normalized is set.
func readComponent(b []byte, c gltf.ComponentType, normalized bool) float64 {
	switch c {
	case gltf.ComponentFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case gltf.ComponentUbyte:
		v := float64(b[0])
		if normalized {
			return v / 255
		}
		return v
	case gltf.ComponentByte:
		v := float64(int8(b[0]))
		if normalized {
			return math.Max(v/127, -1)
		}
		return v
	case gltf.ComponentUshort:
		v := float64(binary.LittleEndian.Uint16(b))
		if normalized {
			return v / 65535
		}
		return v
	case gltf.ComponentShort:
		v := float64(int16(binary.LittleEndian.Uint16(b)))
		if normalized {
			return math.Max(v/32767, -1)
		}
		return v
	case gltf.ComponentUint:
		return float64(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// readFloats decodes an accessor of the expected type into n-wide tuples.
func readFloats(doc *gltf.Document, idx int, want gltf.AccessorType) ([][]float64, error) {
	data, stride, count, acc, err := accessorView(doc, idx)
	if err != nil {
		return nil, err
	}
	if acc.Type != want {
		return nil, fmt.Errorf("expected %v, got %v", want, acc.Type)
	}

	n := componentCount(acc.Type)
	size := componentSize(acc.ComponentType)
	out := make([][]float64, count)
	for i := range count {
		off := i * stride
		tuple := make([]float64, n)
		for j := range n {
			tuple[j] = readComponent(data[off+j*size:], acc.ComponentType, acc.Normalized)
		}
		out[i] = tuple
	}
	return out, nil
}

func readVec3Accessor(doc *gltf.Document, idx int) ([]math3d.Vec3, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorVec3)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec3, len(raw))
	for i, f := range raw {
		out[i] = math3d.V3(f[0], f[1], f[2])
	}
	return out, nil
}

func readVec2Accessor(doc *gltf.Document, idx int) ([]math3d.Vec2, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorVec2)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec2, len(raw))
	for i, f := range raw {
		out[i] = math3d.V2(f[0], f[1])
	}
	return out, nil
}

func readVec4Accessor(doc *gltf.Document, idx int) ([]math3d.Vec4, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorVec4)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Vec4, len(raw))
	for i, f := range raw {
		out[i] = math3d.V4(f[0], f[1], f[2], f[3])
	}
	return out, nil
}

func readMat4Accessor(doc *gltf.Document, idx int) ([]math3d.Mat4, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorMat4)
	if err != nil {
		return nil, err
	}
	out := make([]math3d.Mat4, len(raw))
	for i, f := range raw {
		copy(out[i][:], f)
	}
	return out, nil
}

func readScalarFloats(doc *gltf.Document, idx int) ([]float64, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorScalar)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(raw))
	for i, f := range raw {
		out[i] = f[0]
	}
	return out, nil
}

func readJoints(doc *gltf.Document, idx int) ([][4]int, error) {
	raw, err := readFloats(doc, idx, gltf.AccessorVec4)
	if err != nil {
		return nil, err
	}
	out := make([][4]int, len(raw))
	for i, f := range raw {
		out[i] = [4]int{int(f[0]), int(f[1]), int(f[2]), int(f[3])}
	}
	return out, nil
}

func readIndices(doc *gltf.Document, idx int) ([]int, error) {
	data, stride, count, acc, err := accessorView(doc, idx)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR indices, got %v", acc.Type)
	}

	out := make([]int, count)
	for i := range count {
		b := data[i*stride:]
		switch acc.ComponentType {
		case gltf.ComponentUbyte:
			out[i] = int(b[0])
		case gltf.ComponentUshort:
			out[i] = int(binary.LittleEndian.Uint16(b))
		case gltf.ComponentUint:
			out[i] = int(binary.LittleEndian.Uint32(b))
		default:
			return nil, fmt.Errorf("unexpected index component type: %v", acc.ComponentType)
		}
	}
	return out, nil
}
