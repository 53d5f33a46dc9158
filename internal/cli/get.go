package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xtxerr/hgtload/internal/pipeline"
)

type getOptions struct {
	concurrency  int
	skipDownload bool
	skipUnzip    bool
	verbose      bool
}

func newGetCommand() *cobra.Command {
	var opts getOptions

	cmd := &cobra.Command{
		Use:   "get DATASET FOLDER",
		Short: "Download and unzip HGT files from a remote source",
		Long: `Downloads every archive listed in DATASET into FOLDER and unzips the
archives found there.

DATASET is a manifest path or the name of a manifest shipped in the
datasets folder (for example srtm3).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], args[1], opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.concurrency, "concurrency", "c", 1, "workers downloading or unzipping files in parallel")
	f.BoolVar(&opts.skipDownload, "skip-download", false, "do not download the zip files")
	f.BoolVar(&opts.skipUnzip, "skip-unzip", false, "do not unzip the zip files")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "increase verbosity level")
	return cmd
}

func runGet(cmd *cobra.Command, name, folder string, opts getOptions) error {
	level := "info"
	if opts.verbose {
		level = "debug"
	}
	log, err := setupLogging(cmd.ErrOrStderr(), level, "text")
	if err != nil {
		return err
	}

	if opts.concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", opts.concurrency)
	}
	if err := writableFolder(folder); err != nil {
		return fmt.Errorf("folder %s is not writable: %w", folder, err)
	}
	ds, err := loadDataset(name)
	if err != nil {
		return err
	}

	log.Info(fmt.Sprintf("config - dataset file : %s", ds.Path))
	log.Info(fmt.Sprintf("config - parallelism : %d", opts.concurrency))
	log.Info(fmt.Sprintf("config - folder : %s", folder))

	abs, err := filepath.Abs(folder)
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Options{
		WorkDir:      abs,
		Dataset:      ds,
		Concurrency:  opts.concurrency,
		SkipDownload: opts.skipDownload,
		SkipExtract:  opts.skipUnzip,
		SkipImport:   true,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	_, err = p.Run(cmd.Context())
	return err
}
