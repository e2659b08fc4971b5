package slicer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/slicer/fibers"
	"github.com/gogpu/slicer/output"
	"github.com/gogpu/slicer/volume"
)

// Configuration errors, reported by Settings.Validate before any GPU work.
var (
	// ErrInvalidOutputSize is returned for a non-positive output width or height.
	ErrInvalidOutputSize = errors.New("slicer: output size must be positive")

	// ErrNoViews is returned when no view is requested.
	ErrNoViews = errors.New("slicer: at least one view is required")

	// ErrInvalidBatchSize is returned for a non-positive fiber batch size.
	ErrInvalidBatchSize = errors.New("slicer: batch size must be positive")

	// ErrInvalidMemoryBudget is returned for a negative memory budget.
	ErrInvalidMemoryBudget = errors.New("slicer: memory budget must not be negative")
)

// Settings controls what gets rendered and how.
type Settings struct {
	// OutputSize is the image width and height in pixels.
	OutputSize [2]int `yaml:"output_size"`

	// Views are rendered in order.
	Views []volume.View `yaml:"views"`

	// Slices is the number of slices per view.
	Slices int `yaml:"slices"`

	// Range is the normalized [min, max] window the slices are spread over.
	Range [2]float32 `yaml:"range"`

	// White renders on a white background instead of black.
	White bool `yaml:"white"`

	// BatchSize is the number of streamlines per GPU draw batch.
	BatchSize int `yaml:"batch_size"`

	// Coloring is local, endpoint or uniform. Uniform needs RGB.
	Coloring string `yaml:"coloring"`
	RGB      []int  `yaml:"rgb,omitempty"`

	// Format is the image file format.
	Format output.Format `yaml:"format"`

	// Software allows the CPU rasterizer when no GPU adapter is found.
	// Only a device the renderer opens itself is recognized as software;
	// slices are then uploaded as RGBA8 with unpadded rows.
	Software bool `yaml:"software"`

	// MemoryBudgetMB caps GPU memory use. 0 selects the default budget.
	MemoryBudgetMB int `yaml:"memory_budget_mb,omitempty"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		OutputSize: [2]int{800, 600},
		Views:      append([]volume.View(nil), volume.DefaultViews...),
		Slices:     1,
		Range:      [2]float32{0.3, 0.7},
		BatchSize:  fibers.DefaultBatchSize,
		Coloring:   fibers.Local.String(),
		Format:     output.PNG,
	}
}

// LoadSettings reads YAML settings from path on top of the defaults.
// A missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// SaveSettings writes s as YAML, creating the parent directory.
func SaveSettings(s Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Validate checks every field. The returned error wraps one of the
// package sentinels, volume.ErrNoSlices, volume.ErrInvalidRange or
// fibers.ErrMissingRGB.
func (s *Settings) Validate() error {
	if s.OutputSize[0] <= 0 || s.OutputSize[1] <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidOutputSize, s.OutputSize[0], s.OutputSize[1])
	}
	if len(s.Views) == 0 {
		return ErrNoViews
	}
	if s.Slices <= 0 {
		return fmt.Errorf("%w: got %d", volume.ErrNoSlices, s.Slices)
	}
	lo, hi := s.Range[0], s.Range[1]
	if !(lo >= 0 && lo < hi && hi <= 1) {
		return fmt.Errorf("%w: got [%v, %v]", volume.ErrInvalidRange, lo, hi)
	}
	if s.MemoryBudgetMB < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMemoryBudget, s.MemoryBudgetMB)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidBatchSize, s.BatchSize)
	}
	if _, err := s.FiberColoring(); err != nil {
		return err
	}
	return nil
}

// FiberColoring parses Coloring and RGB.
func (s *Settings) FiberColoring() (fibers.Coloring, error) {
	return fibers.ParseColoring(s.Coloring, s.RGB)
}
