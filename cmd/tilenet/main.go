// Package main provides the tilenet CLI: classify a 28x28 digit from a BMP
// file or from the board camera with a two-layer network whose layers run
// tile by tile on the selected backend.
//
// Usage:
//
//	tilenet -params ./params -image digit.bmp -backend host
//	tilenet -capture -save-frames ./frames -backend cpu -v
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/born-ml/tilenet/inference"
	"github.com/born-ml/tilenet/internal/frame"
)

// stageError tags a CLI failure with the step it happened in.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func stage(name string, err error) error {
	if err == nil {
		return nil
	}
	return &stageError{stage: name, err: err}
}

type options struct {
	paramsDir  string
	imagePath  string
	capture    bool
	backend    string
	tile1      int
	tile2      int
	saveFrames string
	verify     bool
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.paramsDir, "params", ".", "Directory containing fc1_*.bin and fc2_*.bin")
	flag.StringVar(&opts.imagePath, "image", "first_image_mnist.bmp", "BMP image to classify")
	flag.BoolVar(&opts.capture, "capture", false, "Capture a frame from /dev/mem instead of reading -image")
	flag.StringVar(&opts.backend, "backend", inference.Host,
		"Tile executor: "+strings.Join(inference.Backends(), ", "))
	flag.IntVar(&opts.tile1, "tile1", 28, "Tile width for the hidden layer (must divide 784)")
	flag.IntVar(&opts.tile2, "tile2", 10, "Tile width for the output layer (must divide 10)")
	flag.StringVar(&opts.saveFrames, "save-frames", "", "Directory to write captured frames as BMP")
	flag.BoolVar(&opts.verify, "verify", false, "Recompute both layers without tiling and report the deviation")
	flag.BoolVar(&opts.verbose, "v", false, "Log state transitions and layer vectors")
	flag.Parse()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	class, err := run(ctx, opts, logger, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tilenet: %v\n", err)
		stop()
		os.Exit(1)
	}
	logger.Debug("done", "class", class)
}

func run(ctx context.Context, opts options, logger *slog.Logger, stdout io.Writer) (int, error) {
	cfg := inference.DefaultConfig()
	cfg.Tile1 = opts.tile1
	cfg.Tile2 = opts.tile2
	if err := cfg.Validate(); err != nil {
		return 0, stage("config", err)
	}

	pixels, err := readInput(ctx, opts, logger)
	if err != nil {
		return 0, err
	}

	c, err := inference.Load(opts.paramsDir, opts.backend, cfg, inference.WithLogger(logger))
	if err != nil {
		return 0, stage("load", err)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			logger.Warn("close", "err", cerr)
		}
	}()
	if d, ok := c.Executor().(interface{ Describe() string }); ok {
		logger.Info("classifier ready", "executor", d.Describe())
	} else {
		logger.Info("classifier ready", "executor", c.Executor().Name())
	}

	res, err := c.Classify(pixels)
	if err != nil {
		var se *inference.StageError
		if errors.As(err, &se) {
			return 0, stage(se.Stage.Step(), se.Err)
		}
		return 0, stage("classify", err)
	}

	if opts.verify {
		diff, err := c.Verify(res)
		if err != nil {
			return 0, stage("verify", err)
		}
		logger.Info("verified against untiled product", "max_abs_diff", diff)
	}

	fmt.Fprintln(stdout, res.Class)
	return res.Class, nil
}

// openSource opens the camera source; tests replace it.
var openSource = func(opts ...frame.Option) (frame.Source, error) {
	return frame.OpenDevMem(opts...)
}

// readInput returns the 28x28 gray pixels from the camera or the image file.
func readInput(ctx context.Context, opts options, logger *slog.Logger) ([]byte, error) {
	if !opts.capture {
		img, err := frame.LoadGray(opts.imagePath)
		if err != nil {
			return nil, stage("load image", err)
		}
		pixels, err := frame.ToInput(img, frame.InputSide)
		return pixels, stage("load image", err)
	}

	src, err := openSource(frame.WithLogger(logger))
	if err != nil {
		return nil, stage("capture", err)
	}
	defer src.Close()

	logger.Info("waiting for button press")
	f, err := src.Capture(ctx)
	if err != nil {
		return nil, stage("capture", err)
	}

	gray := f.Gray()
	scaled, err := frame.Downscale(gray, frame.InputSide, frame.InputSide)
	if err != nil {
		return nil, stage("capture", err)
	}
	if opts.saveFrames != "" {
		if err := saveFrames(opts.saveFrames, f, gray, scaled); err != nil {
			return nil, stage("save frames", err)
		}
	}
	pixels, err := frame.ToInput(scaled, frame.InputSide)
	return pixels, stage("capture", err)
}

func saveFrames(dir string, f *frame.Frame, gray, scaled *image.Gray) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := frame.SaveRGB565(filepath.Join(dir, "final_image_color.bmp"), f); err != nil {
		return err
	}
	if err := frame.SaveGray(filepath.Join(dir, "final_image_bw.bmp"), gray); err != nil {
		return err
	}
	return frame.SaveGray(filepath.Join(dir, "final_image_scaled.bmp"), scaled)
}
