// Command slicer renders orthogonal slices of a NIfTI volume, optionally
// overlaid with TrackVis streamlines, into image files.
//
// Usage:
//
//	slicer [flags] brain.nii.gz out/
//	slicer -fibers tracts.trk -views left,superior -slices 5 brain.nii out/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	_ "github.com/gogpu/wgpu/hal/allbackends"

	"github.com/gogpu/slicer"
	"github.com/gogpu/slicer/fibers"
	"github.com/gogpu/slicer/format/nifti"
	"github.com/gogpu/slicer/format/trk"
	"github.com/gogpu/slicer/output"
)

func main() {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slicer.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, f, logger); err != nil {
		logger.Error("slicer failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, f *cliFlags, logger *slog.Logger) error {
	settings := slicer.DefaultSettings()
	if f.config != "" {
		s, err := slicer.LoadSettings(f.config)
		if err != nil {
			return err
		}
		settings = s
	}
	if err := f.apply(&settings); err != nil {
		return err
	}

	vol, hdr, err := nifti.ReadFile(f.volume)
	if err != nil {
		return err
	}
	logger.Info("volume loaded", "path", f.volume, "dims", vol.Dims(), "datatype", int(hdr.Datatype))

	var src fibers.Source
	if f.fibers != "" {
		tr, err := trk.Open(f.fibers)
		if err != nil {
			return err
		}
		defer tr.Close()
		logger.Info("tractogram opened", "path", f.fibers, "streamlines", tr.Header().Count)
		src = tr
	}

	r, err := slicer.New(settings, vol, src)
	if err != nil {
		return err
	}
	defer r.Close()

	w := &output.Writer{Dir: f.outDir, Format: settings.Format}
	return r.Run(ctx, func(im slicer.Image) error {
		path, err := w.WriteImage(im.View, im.Index, im.RGBA())
		if err != nil {
			return err
		}
		logger.Info("image written", "path", path)
		return nil
	})
}
