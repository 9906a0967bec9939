package app

import (
	"log/slog"
	"math"
	"time"

	"github.com/ashengine/ash/render"
)

type Config struct {
	Title  string
	Width  int
	Height int

	// Validation enables the Khronos validation layer and forwards its
	// messages to the log.
	Validation bool

	// AssetRoot is the directory shaders, models and textures are read from.
	AssetRoot string
	// Models are OBJ paths relative to AssetRoot. Each is spawned once, laid
	// out along the Y axis.
	Models         []string
	ModelSpacing   float32
	MaxTextureSize int

	// Pipelines are registered after the main pipeline.
	Pipelines []render.PipelineDesc

	// SpinSpeed rotates every entity about Z, in radians per second.
	SpinSpeed float64

	LogLevel slog.Level
	// StatsInterval is how often frame statistics are logged. Zero disables
	// them.
	StatsInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		Title:         "ash",
		Width:         800,
		Height:        600,
		AssetRoot:     "data",
		ModelSpacing:  1.5,
		SpinSpeed:     math.Pi / 2,
		LogLevel:      slog.LevelInfo,
		StatsInterval: 5 * time.Second,
	}
}
