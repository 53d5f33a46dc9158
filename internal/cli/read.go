package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/xtxerr/hgtload/internal/hgt"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/lookup"
)

type readOptions struct {
	dir         string
	sampling    int
	points      []string
	concurrency int
}

func newReadCommand() *cobra.Command {
	var opts readOptions

	cmd := &cobra.Command{
		Use:   "read LAT LNG [HGT_FILE]",
		Short: "Print the elevation of a point",
		Long: `Looks up the elevation of a point in HGT_FILE, or in the tile of --dir
covering the point when no file is given. Repeat --point LAT,LNG to look
up several points at once.

Negative coordinates must follow "--":

  hgtload read -- -20.5 -2.25 S21W003.hgt`,
		Example: `  hgtload read 48.861295 2.339703 N48E002.hgt
  hgtload read --dir tiles --point 48.86,2.34 --point 45.83,6.86`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(opts.points) > 0 && len(args) == 0 {
				return nil
			}
			return cobra.RangeArgs(2, 3)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRead(cmd.OutOrStdout(), cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dir, "dir", ".", "folder holding the tiles")
	f.IntVar(&opts.sampling, "sampling", 0, "tile grid side, detected from the file size when 0")
	f.StringArrayVar(&opts.points, "point", nil, "LAT,LNG to look up in --dir, repeatable")
	f.IntVarP(&opts.concurrency, "concurrency", "c", 4, "parallel lookups for --point")
	return cmd
}

func runRead(w io.Writer, cmd *cobra.Command, args []string, opts readOptions) error {
	if len(args) == 0 {
		points := make([]orb.Point, 0, len(opts.points))
		for _, p := range opts.points {
			pt, err := parsePoint(p)
			if err != nil {
				return err
			}
			points = append(points, pt)
		}
		return readBatch(w, cmd, points, opts)
	}

	lat, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("latitude %q: %w", args[0], err)
	}
	lng, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("longitude %q: %w", args[1], err)
	}

	if len(args) == 3 {
		var topts []hgt.Option
		if opts.sampling > 0 {
			topts = append(topts, hgt.WithSampling(opts.sampling, opts.sampling))
		}
		tile, err := hgt.Open(args[2], topts...)
		if err != nil {
			return err
		}
		defer tile.Close()

		e, err := tile.ElevationAt(lat, lng)
		if err != nil {
			return err
		}
		printReport(w, e)
		return nil
	}

	svc := newLookup(opts)
	defer svc.Close()

	res, err := svc.Elevation(lat, lng)
	if err != nil {
		return err
	}
	printReport(w, res.Elevation)
	return nil
}

func readBatch(w io.Writer, cmd *cobra.Command, points []orb.Point, opts readOptions) error {
	svc := newLookup(opts)
	defer svc.Close()

	results, err := svc.ElevationBatch(cmd.Context(), points, opts.concurrency)
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(w, "Point: %g,%g (%s)\n", r.Point.Lat(), r.Point.Lon(), r.Tile)
		printReport(w, r.Elevation)
	}
	return nil
}

func newLookup(opts readOptions) *lookup.Service {
	lopts := []lookup.Option{lookup.WithLogger(logging.Discard())}
	if opts.sampling > 0 {
		lopts = append(lopts, lookup.WithSampling(opts.sampling))
	}
	return lookup.New(opts.dir, lopts...)
}

// parsePoint reads "lat,lng".
func parsePoint(s string) (orb.Point, error) {
	latS, lngS, ok := strings.Cut(s, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("point %q: want LAT,LNG", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latS), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngS), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return orb.Point{lng, lat}, nil
}

func printReport(w io.Writer, e hgt.Elevation) {
	fmt.Fprintln(w, "Report:")
	fmt.Fprintf(w, "    Location: (%dP,%dL)\n", e.Col, e.Line)
	fmt.Fprintln(w, "    Band 1:")
	fmt.Fprintf(w, "        Value: %d\n", e.Value)
}
