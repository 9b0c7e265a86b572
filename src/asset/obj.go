package asset

import (
	"io"
	"os"
	"strings"

	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ErrEmptyMesh is returned for a model with no triangles.
var ErrEmptyMesh = errors.New("mesh has no triangles")

// LoadOBJ reads a Wavefront OBJ file. Materials are ignored; the texture is
// supplied separately.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open model")
	}
	defer f.Close()
	mesh, err := DecodeOBJ(f)
	return mesh, errors.Wrapf(err, "load %s", path)
}

// DecodeOBJ triangulates every face as a fan and merges identical vertices
// so that each distinct position, color and uv is stored once.
func DecodeOBJ(r io.Reader) (*Mesh, error) {
	dec, err := obj.DecodeReader(r, strings.NewReader(""))
	if err != nil {
		return nil, errors.Wrap(err, "decode obj")
	}

	mesh := &Mesh{}
	unique := make(map[Vertex]uint32)
	add := func(face obj.Face, corner int) error {
		v := face.Vertices[corner]
		if v < 0 || 3*v+2 >= len(dec.Vertices) {
			return errors.Errorf("vertex index %d out of range", v)
		}
		vert := Vertex{
			Pos:   mgl32.Vec3{dec.Vertices[3*v], dec.Vertices[3*v+1], dec.Vertices[3*v+2]},
			Color: mgl32.Vec3{1, 1, 1},
		}
		if corner < len(face.Uvs) {
			uv := face.Uvs[corner]
			if uv >= 0 && 2*uv+1 < len(dec.Uvs) {
				// OBJ puts v=0 at the bottom of the image, Vulkan at the top.
				vert.UV = mgl32.Vec2{dec.Uvs[2*uv], 1 - dec.Uvs[2*uv+1]}
			}
		}

		index, ok := unique[vert]
		if !ok {
			index = uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices, vert)
			unique[vert] = index
		}
		mesh.Indices = append(mesh.Indices, index)
		return nil
	}

	for _, o := range dec.Objects {
		for _, face := range o.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					if err := add(face, corner); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if len(mesh.Indices) == 0 {
		return nil, ErrEmptyMesh
	}
	return mesh, nil
}
