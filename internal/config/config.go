package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/MatusOllah/slogcolor"
	"github.com/joho/godotenv"
	"github.com/modfin/qualm/internal/confidence"
)

// BandFile is the on-disk form of a band table.
//
//	[[band]]
//	name = "High"
//	lower = 90.0
//	color = "green"
type BandFile struct {
	Bands []confidence.Band `toml:"band"`
}

// Bands resolves the band table. A file wins over flag specs, which win
// over the named preset.
func Bands(preset string, specs []string, file string) (confidence.Table, error) {
	switch {
	case file != "":
		return LoadBands(file)
	case len(specs) > 0:
		return confidence.ParseTable(specs)
	}
	return confidence.Preset(preset)
}

func LoadBands(path string) (confidence.Table, error) {
	var f BandFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("parse band file %s: %w", path, err)
	}

	table := confidence.Table(f.Bands).Sorted()
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("band file %s: %w", path, err)
	}
	return table, nil
}

// WriteBands encodes table in the format LoadBands reads.
func WriteBands(w io.Writer, table confidence.Table) error {
	return toml.NewEncoder(w).Encode(BandFile{Bands: table})
}

// LoadEnv reads a .env file from dir into the environment. A missing file
// is not an error, and variables already set are left alone.
func LoadEnv(dir string) error {
	err := godotenv.Load(filepath.Join(dir, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// Logger returns a colored slog logger writing to w.
func Logger(w io.Writer, verbose bool) *slog.Logger {
	opts := *slogcolor.DefaultOptions
	if verbose {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slogcolor.NewHandler(w, &opts))
}
