package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xtxerr/hgtload/internal/config"
	"github.com/xtxerr/hgtload/internal/constants"
	"github.com/xtxerr/hgtload/internal/dataset"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/importer"
	"github.com/xtxerr/hgtload/internal/pipeline"
	"github.com/xtxerr/hgtload/internal/stats"
	"github.com/xtxerr/hgtload/internal/storage"
)

type loadOptions struct {
	configPath string
	plan       bool
	verbose    bool

	// overrides, applied only when the flag was set
	concurrency       int
	driver            string
	dsn               string
	table             string
	outputDir         string
	compression       string
	installExtensions bool
	raster            bool
	blockWidth        int
	blockHeight       int
	sampling          int
	skipDownload      bool
	skipUnzip         bool
	skipImport        bool
	logFormat         string
}

func newLoadCommand() *cobra.Command {
	var opts loadOptions

	cmd := &cobra.Command{
		Use:   "load [DATASET FOLDER]",
		Short: "Download, unzip and import HGT files into a store",
		Long: `Runs the download, extract and import stages. Settings come from the
configuration file, then from flags. DATASET and FOLDER override the
dataset and work_dir keys.

Import stores one row per cell by default; --raster stores blocks of
--sample-width x --sample-height cells instead.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts DATASET and FOLDER together or neither, received %d arg(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd.Flags(), args, opts)
			if err != nil {
				return err
			}
			return runLoad(cmd, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "configuration file")
	f.BoolVar(&opts.plan, "plan", false, "print the estimated import size and exit")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	f.IntVarP(&opts.concurrency, "concurrency", "c", 1, "workers per stage")
	f.StringVar(&opts.driver, "driver", constants.DriverDuckDB, "storage driver: duckdb, parquet or memory")
	f.StringVar(&opts.dsn, "dsn", "", "duckdb database file, empty for in-memory")
	f.StringVar(&opts.table, "table", "", "target table, or parquet subfolder")
	f.StringVar(&opts.outputDir, "output-dir", "", "parquet output folder")
	f.StringVar(&opts.compression, "compression", "", "parquet codec: none, snappy, zstd, lz4, gzip")
	f.BoolVar(&opts.installExtensions, "install-extensions", false, "let duckdb download the spatial extension")
	f.BoolVar(&opts.raster, "raster", false, "import sample blocks instead of single values")
	f.IntVar(&opts.blockWidth, "sample-width", 0, "raster block width in cells")
	f.IntVar(&opts.blockHeight, "sample-height", 0, "raster block height in cells")
	f.IntVar(&opts.sampling, "sampling", 0, "tile grid side, detected from the file size when 0")
	f.BoolVar(&opts.skipDownload, "skip-download", false, "do not download the zip files")
	f.BoolVar(&opts.skipUnzip, "skip-unzip", false, "do not unzip the zip files")
	f.BoolVar(&opts.skipImport, "skip-import", false, "do not import the HGT files")
	f.StringVar(&opts.logFormat, "log-format", constants.LogFormatAuto, "log format: auto, text or json")
	return cmd
}

// buildConfig layers the configuration file, positional arguments and set
// flags, then validates the result.
func buildConfig(flags *pflag.FlagSet, args []string, opts loadOptions) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if len(args) == 2 {
		cfg.Dataset = args[0]
		cfg.WorkDir = args[1]
	}

	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("concurrency", func() { cfg.Concurrency = opts.concurrency })
	set("driver", func() { cfg.Storage.Driver = opts.driver })
	set("dsn", func() { cfg.Storage.DSN = opts.dsn })
	set("table", func() { cfg.Storage.Table = opts.table })
	set("output-dir", func() { cfg.Storage.OutputDir = opts.outputDir })
	set("compression", func() { cfg.Storage.Compression = opts.compression })
	set("install-extensions", func() { cfg.Storage.InstallExtensions = opts.installExtensions })
	set("raster", func() { cfg.Import.Raster = opts.raster })
	set("sample-width", func() { cfg.Import.BlockWidth = opts.blockWidth })
	set("sample-height", func() { cfg.Import.BlockHeight = opts.blockHeight })
	set("sampling", func() { cfg.Import.Sampling = opts.sampling })
	set("skip-download", func() { cfg.Stages.SkipDownload = opts.skipDownload })
	set("skip-unzip", func() { cfg.Stages.SkipExtract = opts.skipUnzip })
	set("skip-import", func() { cfg.Stages.SkipImport = opts.skipImport })
	set("log-format", func() { cfg.Logging.Format = opts.logFormat })
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	if !cfg.Stages.SkipDownload && cfg.Dataset == "" {
		return nil, errors.NewValidation("dataset", "required unless --skip-download is set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runLoad(cmd *cobra.Command, cfg *config.Config, opts loadOptions) error {
	log, err := setupLogging(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	var ds *dataset.Dataset
	if cfg.Dataset != "" {
		if ds, err = loadDataset(cfg.Dataset); err != nil {
			return err
		}
		if cfg.Import.Sampling == 0 {
			cfg.Import.Sampling = ds.Sampling
		}
	}

	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return err
	}

	if opts.plan {
		tiles := 0
		if ds != nil {
			tiles = ds.Len()
		} else if found, err := filepath.Glob(filepath.Join(workDir, "*"+constants.ExtHGT)); err == nil {
			tiles = len(found)
		}
		req := cfg.CalculateRequirements(tiles)
		fmt.Fprint(cmd.OutOrStdout(), req.FormatRequirements())
		return nil
	}

	if err := writableFolder(workDir); err != nil {
		return fmt.Errorf("folder %s is not writable: %w", workDir, err)
	}

	log.Info(fmt.Sprintf("config - dataset file : %s", cfg.Dataset))
	log.Info(fmt.Sprintf("config - parallelism : %d", cfg.Concurrency))
	log.Info(fmt.Sprintf("config - folder : %s", workDir))

	var backend storage.Backend
	if !cfg.Stages.SkipImport {
		bcfg := cfg.StorageBackendConfig()
		bcfg.Logger = log.With("component", "storage")
		if backend, err = storage.Open(bcfg); err != nil {
			return err
		}
		defer backend.Close()
	}

	p, err := pipeline.New(pipeline.Options{
		WorkDir:      workDir,
		Dataset:      ds,
		Concurrency:  cfg.Concurrency,
		SkipDownload: cfg.Stages.SkipDownload,
		SkipExtract:  cfg.Stages.SkipExtract,
		SkipImport:   cfg.Stages.SkipImport,
		Import: importer.Options{
			Backend:       backend,
			Raster:        cfg.Import.Raster,
			BlockWidth:    cfg.Import.BlockWidth,
			BlockHeight:   cfg.Import.BlockHeight,
			Sampling:      cfg.Import.Sampling,
			StatsAccuracy: cfg.Import.StatsAccuracy,
		},
		Logger: log,
	})
	if err != nil {
		return err
	}

	report, err := p.Run(cmd.Context())
	if len(report.Summaries) > 0 {
		printSummaries(cmd.OutOrStdout(), report.Summaries, report.Total)
		log.Info("import finished", append(report.Total.LogAttrs(), "duration", report.Duration)...)
	}
	return err
}

func printSummaries(w io.Writer, summaries []stats.Result, total stats.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TILE\tWRITTEN\tVOID\tEXISTING\tMIN\tMAX\tP50\tP95")
	for _, s := range summaries {
		writeSummary(tw, s.Tile, s)
	}
	total.Tile = "total"
	writeSummary(tw, total.Tile, total)
	tw.Flush()
}

func writeSummary(w io.Writer, name string, r stats.Result) {
	minMax := "-\t-"
	if r.Samples > 0 {
		minMax = fmt.Sprintf("%.0f\t%.0f", r.Min, r.Max)
	}
	quantiles := "-\t-"
	if r.HasQuantiles() {
		quantiles = fmt.Sprintf("%.0f\t%.0f", *r.P50, *r.P95)
	}
	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n", name, r.Written, r.Void, r.Existing, minMax, quantiles)
}
