// Package asset loads the mesh, texture and shaders the viewer draws.
package asset

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

// Vertex is one interleaved vertex as the vertex shader consumes it.
type Vertex struct {
	Pos   mgl32.Vec3
	Color mgl32.Vec3
	UV    mgl32.Vec2
}

// VertexBinding describes the single interleaved vertex stream.
func VertexBinding() vulkan.VertexInputBindingDescription {
	return vulkan.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vulkan.VertexInputRateVertex,
	}
}

// VertexAttributes maps position, color and texture coordinate to shader
// locations 0, 1 and 2.
func VertexAttributes() []vulkan.VertexInputAttributeDescription {
	return []vulkan.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   vulkan.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Pos)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   vulkan.FormatR32g32b32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   vulkan.FormatR32g32Sfloat,
			Offset:   uint32(unsafe.Offsetof(Vertex{}.UV)),
		},
	}
}

// Mesh is indexed triangle-list geometry.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes encodes the vertices little-endian for upload.
func (m *Mesh) VertexBytes() []byte {
	var buf bytes.Buffer
	buf.Grow(len(m.Vertices) * int(unsafe.Sizeof(Vertex{})))
	// Writes to a bytes.Buffer only fail on unsupported types.
	_ = binary.Write(&buf, binary.LittleEndian, m.Vertices)
	return buf.Bytes()
}

// IndexBytes encodes the indices as little-endian uint32.
func (m *Mesh) IndexBytes() []byte {
	out := make([]byte, 4*len(m.Indices))
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(out[4*i:], idx)
	}
	return out
}

// Quads is two stacked textured quads, the geometry drawn when no model
// file is given.
func Quads() *Mesh {
	corners := []struct {
		x, y  float32
		color mgl32.Vec3
		uv    mgl32.Vec2
	}{
		{-0.5, -0.5, mgl32.Vec3{1, 0, 0}, mgl32.Vec2{1, 0}},
		{0.5, -0.5, mgl32.Vec3{0, 1, 0}, mgl32.Vec2{0, 0}},
		{0.5, 0.5, mgl32.Vec3{0, 0, 1}, mgl32.Vec2{0, 1}},
		{-0.5, 0.5, mgl32.Vec3{1, 1, 1}, mgl32.Vec2{1, 1}},
	}
	m := &Mesh{}
	for _, z := range []float32{0, -0.5} {
		base := uint32(len(m.Vertices))
		for _, c := range corners {
			m.Vertices = append(m.Vertices, Vertex{Pos: mgl32.Vec3{c.x, c.y, z}, Color: c.color, UV: c.uv})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base+2, base+3, base)
	}
	return m
}
