// Package cli implements the hgtload command line.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xtxerr/hgtload/internal/dataset"
	"github.com/xtxerr/hgtload/internal/logging"

	// storage drivers
	_ "github.com/xtxerr/hgtload/internal/storage/duckdb"
	_ "github.com/xtxerr/hgtload/internal/storage/parquet"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DatasetDir is searched for manifests given by name.
const DatasetDir = "datasets"

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hgtload",
		Short: "Download, extract and import SRTM elevation tiles",
		Long: `hgtload fetches the HGT tiles listed in a dataset manifest, unzips them
into a folder and loads their elevations into DuckDB or Parquet files.`,
		SilenceUsage: true,
	}
	root.Version = Version
	root.SetVersionTemplate("hgtload version {{.Version}}\n")

	root.AddCommand(newGetCommand())
	root.AddCommand(newLoadCommand())
	root.AddCommand(newReadCommand())
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// setupLogging routes logs to w, the command's stderr.
func setupLogging(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logging.InitWithWriter(w, lvl, format)
	return logging.Logger, nil
}

// loadDataset resolves name as a path or as a manifest in DatasetDir next to
// the working directory or the executable.
func loadDataset(name string) (*dataset.Dataset, error) {
	dirs := []string{DatasetDir}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), DatasetDir))
	}

	path, err := dataset.Resolve(name, dirs...)
	if err != nil {
		return nil, err
	}
	return dataset.Load(path)
}

// writableFolder creates dir if needed and checks it accepts new files.
func writableFolder(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".hgtload-*")
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(f.Name())
}
