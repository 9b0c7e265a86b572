package render

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

// UniformSize is the byte size of the model, view and projection matrices.
const UniformSize = 3 * 16 * 4

// Transforms is the per-frame uniform payload. Matrices are column major.
type Transforms struct {
	Model      mgl32.Mat4
	View       mgl32.Mat4
	Projection mgl32.Mat4
}

// put encodes the three matrices into dst in the std140 layout expected by
// the vertex shader.
func (t *Transforms) put(dst []byte) {
	off := 0
	for _, m := range [...]*mgl32.Mat4{&t.Model, &t.View, &t.Projection} {
		for _, v := range m {
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
			off += 4
		}
	}
}

// Spinner rotates the model around Z by 90 degrees per second, seen from
// (2, 2, 2) with a 45 degree perspective.
type Spinner struct {
	start time.Time
	now   func() time.Time
}

func NewSpinner() *Spinner {
	return &Spinner{start: time.Now(), now: time.Now}
}

// TransformsAt computes the payload for elapsed seconds and the given
// aspect ratio. The projection's Y axis is flipped for Vulkan clip space.
func TransformsAt(elapsed float32, aspect float32) Transforms {
	proj := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10)
	proj[5] *= -1
	return Transforms{
		Model:      mgl32.HomogRotate3DZ(elapsed * mgl32.DegToRad(90)),
		View:       mgl32.LookAtV(mgl32.Vec3{2, 2, 2}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, 1}),
		Projection: proj,
	}
}

func (s *Spinner) WriteUniforms(dst []byte, extent vulkan.Extent2D) {
	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	t := TransformsAt(float32(s.now().Sub(s.start).Seconds()), aspect)
	t.put(dst)
}
