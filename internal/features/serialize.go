// Featuresmith - Relational Feature Synthesis and Automated Model Selection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/featuresmith

package features

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FormatVersion is the feature definition file version.
const FormatVersion = 1

// ErrUnsupportedVersion is returned when a definition file has an unknown version.
var ErrUnsupportedVersion = errors.New("unsupported feature definition version")

// featureFile is the on-disk envelope of a definition list.
type featureFile struct {
	Version  int        `json:"version"`
	Target   string     `json:"target"`
	Features []*Feature `json:"features"`
}

// WriteFeatures encodes definitions for the target entity as JSON.
func WriteFeatures(w io.Writer, target string, defs []*Feature) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(featureFile{Version: FormatVersion, Target: target, Features: defs}); err != nil {
		return fmt.Errorf("encode feature definitions: %w", err)
	}
	return nil
}

// ReadFeatures decodes definitions written by WriteFeatures.
func ReadFeatures(r io.Reader) (string, []*Feature, error) {
	var ff featureFile
	if err := json.NewDecoder(r).Decode(&ff); err != nil {
		return "", nil, fmt.Errorf("decode feature definitions: %w", err)
	}
	if ff.Version != FormatVersion {
		return "", nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ff.Version)
	}
	for _, f := range ff.Features {
		if f == nil {
			return "", nil, errors.New("decode feature definitions: null feature")
		}
		if err := f.validate(); err != nil {
			return "", nil, fmt.Errorf("decode feature definitions: %w", err)
		}
	}
	return ff.Target, ff.Features, nil
}

// SaveFeatures writes definitions to path, creating parent directories.
func SaveFeatures(path, target string, defs []*Feature) (err error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	f, err := os.Create(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return WriteFeatures(f, target, defs)
}

// LoadFeatures reads definitions from path.
func LoadFeatures(path string) (string, []*Feature, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return "", nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return ReadFeatures(f)
}
