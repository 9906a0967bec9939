// Package app runs the engine as an interactive program: window, device,
// renderer and scene are created in order, the frame loop runs until the
// window closes, and everything is torn down in reverse.
package app

import (
	"context"
	"log/slog"
	"os"

	"github.com/ashengine/ash/assets"
	"github.com/ashengine/ash/gpu/vkng"
	"github.com/ashengine/ash/internal/logging"
	"github.com/ashengine/ash/platform/sdlwindow"
	"github.com/ashengine/ash/render"
	"github.com/ashengine/ash/scene"
	"github.com/cockroachdb/errors"
)

// Run blocks until the window is closed or ctx is cancelled. It must be
// called from the main OS thread.
func Run(ctx context.Context, cfg Config) (err error) {
	logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	log := logging.Logger()

	win, err := sdlwindow.Open(sdlwindow.Config{Title: cfg.Title, Width: cfg.Width, Height: cfg.Height})
	if err != nil {
		return err
	}
	defer win.Close()

	deviceCfg := vkng.DefaultConfig()
	deviceCfg.AppName = cfg.Title
	deviceCfg.Validation = cfg.Validation
	device, err := vkng.Open(win.SDL(), deviceCfg)
	if err != nil {
		return errors.Wrap(err, "open device")
	}
	defer device.Close()

	assetFS := os.DirFS(cfg.AssetRoot)
	loader := assets.NewLoader(assetFS)
	loader.MaxTextureSize = cfg.MaxTextureSize

	renderCfg := render.DefaultConfig()
	renderCfg.ShaderFS = assetFS
	renderer := render.New(device, win, renderCfg)
	renderer.SetTextureLoader(loader)
	defer func() {
		if cleanupErr := renderer.Cleanup(); cleanupErr != nil {
			log.Error("renderer cleanup failed", "err", cleanupErr)
			if err == nil {
				err = cleanupErr
			}
		}
	}()

	if err := renderer.Init(cfg.Pipelines); err != nil {
		return errors.Wrap(err, "init renderer")
	}

	world := scene.NewWorld()
	world.OnChange(renderer.SignalRecord)
	renderer.SetScene(world)

	if err := populate(ctx, renderer, loader, world, cfg.Models, cfg.ModelSpacing); err != nil {
		return err
	}
	log.Info("scene ready", "entities", world.Len(), "models", len(cfg.Models))

	return loop(ctx, cfg, win, renderer, world)
}

func loop(ctx context.Context, cfg Config, win *sdlwindow.Window, renderer *render.Renderer, world *scene.World) error {
	log := logging.Logger()
	clock := NewFrameClock()

	for {
		if ctx.Err() != nil {
			log.Info("shutdown requested")
			return nil
		}

		win.PollEvents()
		if win.Closed() {
			return nil
		}

		spin(world, cfg.SpinSpeed, clock.Tick())

		if err := renderer.Render(); err != nil {
			return errors.Wrap(err, "render frame")
		}
		if renderer.Minimized() {
			win.WaitEvents()
			continue
		}

		if fps, ok := clock.Sample(cfg.StatsInterval); ok {
			stats := renderer.Stats()
			log.Info("frame stats",
				"fps", fps,
				"submitted", stats.FramesSubmitted,
				"skipped", stats.FramesSkipped,
				"recreations", stats.Recreations,
				"record_passes", stats.RecordPasses,
			)
		}
	}
}
