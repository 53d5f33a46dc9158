package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/xtxerr/hgtload/internal/dataset"
	"github.com/xtxerr/hgtload/internal/errors"
	"github.com/xtxerr/hgtload/internal/importer"
	"github.com/xtxerr/hgtload/internal/logging"
	"github.com/xtxerr/hgtload/internal/storage"
	"github.com/xtxerr/hgtload/internal/testutil"
)

// mirror serves one zip archive per tile name.
func mirror(t *testing.T, names ...string) (*httptest.Server, *dataset.Dataset) {
	t.Helper()
	files := map[string][]byte{}
	ds := &dataset.Dataset{Files: map[string]dataset.File{}}
	for _, name := range names {
		zip := name + ".hgt.zip"
		files["/"+zip] = testutil.ZipBytes(t, map[string][]byte{
			name + ".hgt": testutil.HGTBytes(testutil.Grid(3, testutil.Constant(7))),
		})
		ds.Files[name] = dataset.File{Name: name, Zip: zip}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	for name, f := range ds.Files {
		f.URL = srv.URL + "/" + f.Zip
		ds.Files[name] = f
	}
	return srv, ds
}

func TestNew_Validation(t *testing.T) {
	be := storage.NewMemoryBackend(storage.ModeValue)
	tests := []struct {
		name string
		opts Options
	}{
		{"no work dir", Options{Dataset: &dataset.Dataset{}, Import: importer.Options{Backend: be}}},
		{"no dataset", Options{WorkDir: t.TempDir(), Import: importer.Options{Backend: be}}},
		{"no backend", Options{WorkDir: t.TempDir(), Dataset: &dataset.Dataset{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if !errors.Is(err, errors.ErrMissingField) {
				t.Errorf("error = %v, want ErrMissingField", err)
			}
		})
	}
}

func TestNew_SkippedStagesNeedNothing(t *testing.T) {
	p, err := New(Options{WorkDir: t.TempDir(), SkipDownload: true, SkipImport: true, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.opts.Concurrency != 1 {
		t.Errorf("concurrency = %d, want 1", p.opts.Concurrency)
	}
}

func TestRun(t *testing.T) {
	_, ds := mirror(t, "N00E010", "N00E011", "S01W001")
	ds.Sampling = 3
	be := storage.NewMemoryBackend(storage.ModeValue)
	dir := t.TempDir()

	p, err := New(Options{
		WorkDir:     dir,
		Dataset:     ds,
		Concurrency: 2,
		Import:      importer.Options{Backend: be},
		Logger:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Downloaded != 3 || report.Extracted != 3 || report.Imported != 3 {
		t.Errorf("report = %d/%d/%d, want 3/3/3", report.Downloaded, report.Extracted, report.Imported)
	}
	if !be.Prepared() {
		t.Error("backend environment should be prepared")
	}
	// N00E010 and N00E011 share their 3-cell edge column, whichever
	// worker gets there first.
	if be.Len() != 24 {
		t.Errorf("stored %d records, want 24", be.Len())
	}
	if len(report.Summaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(report.Summaries))
	}
	if report.Total.Written != 24 || report.Total.Existing != 3 {
		t.Errorf("total written %d existing %d, want 24 and 3", report.Total.Written, report.Total.Existing)
	}

	tiles, _ := filepath.Glob(filepath.Join(dir, "*.hgt"))
	if len(tiles) != 3 {
		t.Errorf("extracted %d tiles, want 3", len(tiles))
	}
}

func TestRun_SecondRunSkipsExisting(t *testing.T) {
	_, ds := mirror(t, "N00E010")
	be := storage.NewMemoryBackend(storage.ModeValue)
	dir := t.TempDir()

	opts := Options{WorkDir: dir, Dataset: ds, Import: importer.Options{Backend: be}, Logger: logging.Discard()}
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	opts.SkipDownload = true
	opts.SkipExtract = true
	p, err = New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Downloaded != 0 || report.Extracted != 0 {
		t.Errorf("skipped stages reported work: %+v", report)
	}
	if report.Total.Existing != 9 || report.Total.Written != 0 {
		t.Errorf("total = %+v, want 9 existing", report.Total)
	}
	if be.Len() != 9 {
		t.Errorf("stored %d records, want 9", be.Len())
	}
}

func TestRun_RasterMode(t *testing.T) {
	_, ds := mirror(t, "N00E010")
	be := storage.NewMemoryBackend(storage.ModeRaster)

	p, err := New(Options{
		WorkDir: t.TempDir(),
		Dataset: ds,
		Import:  importer.Options{Backend: be, Raster: true, BlockWidth: 2, BlockHeight: 2},
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 3x3 cells in 2x2 blocks.
	if be.Len() != 4 {
		t.Errorf("stored %d blocks, want 4", be.Len())
	}
}

func TestRun_DownloadFailureStopsPipeline(t *testing.T) {
	srv, ds := mirror(t, "N00E010")
	ds.Files["N00E011"] = dataset.File{Name: "N00E011", URL: srv.URL + "/missing.zip", Zip: "N00E011.hgt.zip"}
	be := storage.NewMemoryBackend(storage.ModeValue)

	p, err := New(Options{WorkDir: t.TempDir(), Dataset: ds, Import: importer.Options{Backend: be}, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = p.Run(context.Background())
	if !errors.Is(err, errors.ErrPoolFailure) {
		t.Fatalf("Run error = %v, want ErrPoolFailure", err)
	}
	if be.Prepared() || be.Len() != 0 {
		t.Error("import must not run after a failed download stage")
	}
}

func TestImport_ClosedBackend(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteHGT(t, dir, "N00E010.hgt", testutil.Grid(3, testutil.Constant(1)))

	be := storage.NewMemoryBackend(storage.ModeValue)
	be.Close()

	p, err := New(Options{WorkDir: dir, SkipDownload: true, SkipExtract: true, Import: importer.Options{Backend: be}, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := p.Import(context.Background()); err == nil {
		t.Error("expected an error from a closed backend")
	}
}

func TestRun_Cancelled(t *testing.T) {
	_, ds := mirror(t, "N00E010", "N00E011")
	be := storage.NewMemoryBackend(storage.ModeValue)

	p, err := New(Options{WorkDir: t.TempDir(), Dataset: ds, Import: importer.Options{Backend: be}, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Run(ctx); err == nil {
		t.Error("expected an error from a cancelled run")
	}
}
