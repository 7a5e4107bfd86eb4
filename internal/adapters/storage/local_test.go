package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tessera-test-*")
	if err != nil {
		t.Fatalf("creating temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("creating dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return dir
}

func TestLocalStorageList(t *testing.T) {
	dir := setupTestDir(t, map[string]string{
		"regions.shp":        "shape data",
		"regions.dbf":        "attributes",
		"rasters/precip.nc":  "netcdf data",
		"counties.geojson":   "features",
		"notes.txt":          "not an input",
		"nested/ignored.csv": "also not",
	})

	s := NewLocalStorage(dir)
	objects, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(objects) != 4 {
		t.Fatalf("List() returned %d objects, want 4", len(objects))
	}

	keys := make(map[string]bool)
	for _, obj := range objects {
		keys[obj.Key] = true
		if obj.Size == 0 {
			t.Errorf("object %s has zero size", obj.Key)
		}
	}
	for _, want := range []string{"regions.shp", "regions.dbf", filepath.Join("rasters", "precip.nc"), "counties.geojson"} {
		if !keys[want] {
			t.Errorf("List() missing %s", want)
		}
	}
	if keys["notes.txt"] {
		t.Error("List() included a non-input file")
	}
}

func TestLocalStorageDownload(t *testing.T) {
	dir := setupTestDir(t, map[string]string{"regions.gpkg": "gpkg bytes"})
	destDir := setupTestDir(t, nil)

	s := NewLocalStorage(dir)
	dest := filepath.Join(destDir, "cache", "regions.gpkg")
	if err := s.Download(context.Background(), "regions.gpkg", dest); err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(data) != "gpkg bytes" {
		t.Errorf("downloaded content = %q, want %q", data, "gpkg bytes")
	}
}

func TestLocalStorageDownloadSamePath(t *testing.T) {
	dir := setupTestDir(t, map[string]string{"data.nc": "raster"})

	s := NewLocalStorage(dir)
	dest := filepath.Join(dir, "data.nc")
	if err := s.Download(context.Background(), "data.nc", dest); err != nil {
		t.Fatalf("Download() to same path error = %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if string(data) != "raster" {
		t.Errorf("content = %q after same-path download, want %q", data, "raster")
	}
}

func TestLocalStorageExists(t *testing.T) {
	dir := setupTestDir(t, map[string]string{"present.nc": "x"})
	s := NewLocalStorage(dir)

	if ok, err := s.Exists(context.Background(), "present.nc"); err != nil || !ok {
		t.Errorf("Exists(present.nc) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := s.Exists(context.Background(), "absent.nc"); err != nil || ok {
		t.Errorf("Exists(absent.nc) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestIsDataFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"regions.shp", true},
		{"REGIONS.SHP", true},
		{"regions.prj", true},
		{"counties.geojson", true},
		{"counties.gpkg", true},
		{"precip.nc", true},
		{"readme.md", false},
		{"archive.zip", false},
		{"noextension", false},
	}

	for _, tt := range tests {
		if got := isDataFile(tt.name); got != tt.want {
			t.Errorf("isDataFile(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
