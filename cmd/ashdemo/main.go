// Command ashdemo opens a window and renders the given OBJ models spinning
// in front of the default camera.
//
// Run go generate to compile the shaders in data/shaders with glslc.
//
//go:generate glslc ../../data/shaders/shader.vert -o ../../data/shaders/vert.spv
//go:generate glslc ../../data/shaders/shader.frag -o ../../data/shaders/frag.spv
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/ashengine/ash/app"
)

type modelList []string

func (m *modelList) String() string {
	return strings.Join(*m, ",")
}

func (m *modelList) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	runtime.LockOSThread()

	cfg := app.DefaultConfig()
	var models modelList
	var verbose bool

	flag.IntVar(&cfg.Width, "width", cfg.Width, "window width")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "window height")
	flag.BoolVar(&cfg.Validation, "validation", false, "enable Vulkan validation layers")
	flag.Var(&models, "model", "OBJ model relative to the asset root (repeatable)")
	flag.StringVar(&cfg.AssetRoot, "assets", cfg.AssetRoot, "asset root directory")
	flag.IntVar(&cfg.MaxTextureSize, "max-texture", 0, "downscale textures larger than this (0 keeps full size)")
	flag.Float64Var(&cfg.SpinSpeed, "spin", cfg.SpinSpeed, "rotation speed in radians per second")
	flag.BoolVar(&verbose, "v", false, "log per-frame diagnostics")
	flag.Parse()

	cfg.Models = models
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := app.Run(ctx, cfg)
	if err != nil {
		stop()
		log.Fatalf("%+v\n", err)
	}
}
