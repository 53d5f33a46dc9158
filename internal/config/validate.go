package config

import (
	"errors"
	"fmt"

	"github.com/xtxerr/hgtload/internal/constants"
	hgterrors "github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/validation"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.WorkDir == "" {
		errs = append(errs, hgterrors.NewMissingField("work_dir"))
	}

	if err := validation.ValidatePositive("concurrency", c.Concurrency); err != nil {
		errs = append(errs, err)
	}

	if err := c.Import.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("import: %w", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the import configuration.
func (c *ImportConfig) Validate() error {
	var errs []error

	if err := validation.ValidateNonNegative("block_width", c.BlockWidth); err != nil {
		errs = append(errs, err)
	}
	if err := validation.ValidateNonNegative("block_height", c.BlockHeight); err != nil {
		errs = append(errs, err)
	}
	if !c.Raster && (c.BlockWidth > 0 || c.BlockHeight > 0) {
		errs = append(errs, hgterrors.NewValidation("block size", "only used with raster"))
	}

	if c.Sampling == 1 || c.Sampling < 0 {
		errs = append(errs, hgterrors.NewInvalidValue("sampling", c.Sampling, "must be 0 or at least 2"))
	}

	if c.StatsAccuracy <= 0 || c.StatsAccuracy >= 1 {
		errs = append(errs, hgterrors.NewInvalidValue("stats_accuracy", c.StatsAccuracy, "must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the storage configuration.
func (c *StorageConfig) Validate() error {
	var errs []error

	if !constants.IsValidDriver(c.Driver) {
		errs = append(errs, hgterrors.NewInvalidValue("driver", c.Driver, fmt.Sprintf("must be one of %v", constants.ValidDrivers)))
	}

	if err := validation.ValidateIdentifier(c.Table); err != nil {
		errs = append(errs, fmt.Errorf("table: %w", err))
	}

	if c.Driver == constants.DriverParquet {
		if c.OutputDir == "" {
			errs = append(errs, hgterrors.NewMissingField("output_dir"))
		}
		if !constants.IsValidCompression(c.Compression) {
			errs = append(errs, hgterrors.NewInvalidValue("compression", c.Compression, fmt.Sprintf("must be one of %v", constants.ValidCompressions)))
		}
	}

	if err := validation.ValidateNonNegative("max_open_conns", c.MaxOpenConns); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	var errs []error

	if _, err := logging.ParseLevel(c.Level); err != nil {
		errs = append(errs, hgterrors.NewInvalidValue("level", c.Level, err.Error()))
	}
	if !constants.IsValidLogFormat(c.Format) {
		errs = append(errs, hgterrors.NewInvalidValue("format", c.Format, fmt.Sprintf("must be one of %v", constants.ValidLogFormats)))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
