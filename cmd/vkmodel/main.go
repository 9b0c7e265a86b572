// Command vkmodel shows a textured, spinning model in a Vulkan window.
package main

//go:generate glslc ../../shaders/shader.vert -o ../../shaders/vert.spv
//go:generate glslc ../../shaders/shader.frag -o ../../shaders/frag.spv

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"vkmodel/src/render"
	"vkmodel/src/viewer"
)

func main() {
	def := viewer.DefaultConfig()
	var (
		model      = flag.String("model", "", "OBJ model to draw (default: built-in quads)")
		texture    = flag.String("texture", "", "texture image (default: checkerboard)")
		vert       = flag.String("vert", def.VertexShader, "compiled vertex shader")
		frag       = flag.String("frag", def.FragmentShader, "compiled fragment shader")
		width      = flag.Int("width", def.Width, "initial window width")
		height     = flag.Int("height", def.Height, "initial window height")
		validation = flag.Bool("validation", false, "enable the Khronos validation layer")
		anisotropy = flag.Bool("require-anisotropy", def.RequireAnisotropy, "reject adapters without sampler anisotropy")
		samples    = flag.Int("samples", 0, "cap on MSAA samples (0 = adapter maximum, 1 = off)")
		logLevel   = flag.String("log-level", "info", "debug, info, warn or error")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "vkmodel: %v\n", err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	render.SetLogger(logger)

	cfg := viewer.NewConfig(
		viewer.WithModel(*model),
		viewer.WithTexture(*texture),
		viewer.WithShaders(*vert, *frag),
		viewer.WithSize(*width, *height),
		viewer.WithValidation(*validation),
		viewer.WithRequireAnisotropy(*anisotropy),
		viewer.WithMaxSamples(*samples),
	)

	v, err := viewer.New(cfg)
	if err != nil {
		logger.Error("setup failed", "err", err)
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := v.Run(ctx)
	stop()
	closeErr := v.Close()

	if runErr != nil {
		logger.Error("render loop stopped", "err", runErr)
		os.Exit(1)
	}
	if closeErr != nil {
		logger.Error("shutdown", "err", closeErr)
		os.Exit(1)
	}
}
