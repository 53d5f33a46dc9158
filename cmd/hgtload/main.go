// hgtload downloads SRTM elevation tiles and imports them into DuckDB or
// Parquet.
package main

import (
	"fmt"
	"os"

	"github.com/xtxerr/hgtload/internal/cli"
	"github.com/xtxerr/hgtload/internal/errors"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		// 2 for rejected input, 1 for failed runs
		if errors.IsValidation(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
