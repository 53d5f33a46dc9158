// Package parquet stores elevation records as Parquet files, one file per
// tile under <output_dir>/<table>/.
//
// A session rewrites its tile file: rows already present are loaded first,
// so re-importing a tile skips the footprints it already holds. The new file
// is written next to the old one and renamed into place on Close.
//
// Files are self-contained: the edge row or column a tile shares with its
// neighbour is written to both files.
package parquet
