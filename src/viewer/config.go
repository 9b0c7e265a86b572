package viewer

import (
	"github.com/vulkan-go/vulkan"

	"vkmodel/src/render"
)

// Config is everything the viewer needs to start. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	Title  string
	Width  int
	Height int

	// ModelPath is an OBJ file. Empty draws the built-in quads.
	ModelPath string
	// TexturePath is an image file. Empty uses a generated checkerboard.
	TexturePath string

	VertexShader   string
	FragmentShader string

	Validation        bool
	RequireAnisotropy bool
	// MaxSamples caps the MSAA sample count. Zero uses the adapter maximum
	// and one disables multisampling.
	MaxSamples     int
	FramesInFlight int
	ClearColor     [4]float32
}

// Option adjusts a Config.
type Option func(*Config)

func DefaultConfig() Config {
	return Config{
		Title:             "vkmodel",
		Width:             800,
		Height:            600,
		VertexShader:      "shaders/vert.spv",
		FragmentShader:    "shaders/frag.spv",
		RequireAnisotropy: true,
		FramesInFlight:    render.FramesInFlight,
		ClearColor:        [4]float32{0, 0, 0, 1},
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithTitle(title string) Option {
	return func(c *Config) { c.Title = title }
}

func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

func WithModel(path string) Option {
	return func(c *Config) { c.ModelPath = path }
}

func WithTexture(path string) Option {
	return func(c *Config) { c.TexturePath = path }
}

// WithShaders sets the compiled SPIR-V vertex and fragment shader paths.
func WithShaders(vertex, fragment string) Option {
	return func(c *Config) {
		c.VertexShader = vertex
		c.FragmentShader = fragment
	}
}

// WithValidation enables the Khronos validation layer when it is installed.
func WithValidation(enabled bool) Option {
	return func(c *Config) { c.Validation = enabled }
}

// WithRequireAnisotropy controls whether adapters without sampler
// anisotropy are rejected. When false such adapters are accepted and the
// sampler runs without anisotropic filtering.
func WithRequireAnisotropy(required bool) Option {
	return func(c *Config) { c.RequireAnisotropy = required }
}

func WithMaxSamples(n int) Option {
	return func(c *Config) { c.MaxSamples = n }
}

func WithFramesInFlight(n int) Option {
	return func(c *Config) { c.FramesInFlight = n }
}

func WithClearColor(r, g, b, a float32) Option {
	return func(c *Config) { c.ClearColor = [4]float32{r, g, b, a} }
}

// sampleCount picks the largest power of two no greater than both the
// adapter maximum and limit.
func sampleCount(adapter vulkan.SampleCountFlagBits, limit int) vulkan.SampleCountFlagBits {
	if limit <= 0 {
		return adapter
	}
	samples := vulkan.SampleCount1Bit
	for next := samples << 1; next <= adapter && int(next) <= limit; next <<= 1 {
		samples = next
	}
	return samples
}
