// Package dataset loads the manifests that list downloadable HGT archives.
//
// A manifest maps tile names to the archive holding them:
//
//	sampling: 1201
//	files:
//	  N00E010:
//	    url: https://example.org/srtm3/N00E010.hgt.zip
//	    zip: N00E010.hgt.zip
//
// JSON manifests are accepted too, being valid YAML.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/hgt"
	"github.com/xtxerr/hgtload/internal/validation"
)

// Extensions tried by Resolve when a dataset is given by name.
var Extensions = []string{".yaml", ".yml", ".json"}

// File is one downloadable archive.
type File struct {
	// Name is the tile name, taken from the manifest key.
	Name string `yaml:"-"`

	URL string `yaml:"url"`
	Zip string `yaml:"zip"`
}

func (f File) String() string { return f.Name }

// Dataset is a parsed manifest.
type Dataset struct {
	// Path is the manifest file, empty when parsed from memory.
	Path string `yaml:"-"`

	// Sampling is the grid side of the tiles. Zero means detect from the
	// file size.
	Sampling int `yaml:"sampling"`

	Files map[string]File `yaml:"files"`
}

// Load reads and validates the manifest at path.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	ds.Path = path
	return ds, nil
}

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Dataset, error) {
	ds := &Dataset{}
	if err := yaml.Unmarshal(data, ds); err != nil {
		return nil, fmt.Errorf("parse: %v: %w", err, errors.ErrInvalidDataset)
	}

	for name, f := range ds.Files {
		f.Name = name
		ds.Files[name] = f
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// Validate checks every entry of the manifest.
func (d *Dataset) Validate() error {
	var errs []error

	if d.Sampling != 0 && d.Sampling < 2 {
		errs = append(errs, fmt.Errorf("sampling %d must be at least 2: %w", d.Sampling, errors.ErrInvalidDataset))
	}

	if len(d.Files) == 0 {
		errs = append(errs, fmt.Errorf("no files: %w", errors.ErrInvalidDataset))
	}

	for _, f := range d.Sorted() {
		if _, err := hgt.ParseName(f.Name); err != nil {
			errs = append(errs, fmt.Errorf("file %q: %w", f.Name, err))
		}
		if err := validation.ValidateDownloadURL(f.URL); err != nil {
			errs = append(errs, fmt.Errorf("file %q: %w", f.Name, err))
		}
		if f.Zip == "" {
			errs = append(errs, fmt.Errorf("file %q: zip is empty: %w", f.Name, errors.ErrInvalidDataset))
		} else if err := validation.ValidateFileName(f.Zip); err != nil {
			errs = append(errs, fmt.Errorf("file %q: %w", f.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Sorted returns the files ordered by tile name.
func (d *Dataset) Sorted() []File {
	files := make([]File, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files
}

// Len returns the number of files in the manifest.
func (d *Dataset) Len() int { return len(d.Files) }

// Resolve finds a manifest. name is used as is when it names an existing
// file; otherwise each dir is searched for name with one of Extensions.
func Resolve(name string, dirs ...string) (string, error) {
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		return name, nil
	}

	for _, dir := range dirs {
		for _, ext := range Extensions {
			candidate := filepath.Join(dir, name+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("dataset %q not found: %w", name, errors.ErrInvalidDataset)
}
