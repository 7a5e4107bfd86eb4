// Package vector reads region polygons from shapefile, GeoJSON and
// GeoPackage sources behind a common streaming interface.
package vector

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// Options selects how a vector file is read.
type Options struct {
	// IDField is the attribute carrying the region identifier.
	IDField string

	// Layer names the feature table to read from a GeoPackage. Empty
	// picks the first feature layer in the file.
	Layer string

	// GridProj is a proj4 string for the target spatial reference. When
	// set, shapefile geometries are reprojected into it before use.
	GridProj string
}

// DefaultIDField is used when no id attribute is configured.
const DefaultIDField = "id"

// Open creates a VectorSource for the given file, selected by extension.
func Open(path string, opts Options) (output.VectorSource, error) {
	if opts.IDField == "" {
		opts.IDField = DefaultIDField
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return OpenShapefile(path, opts)
	case ".geojson", ".json":
		return OpenGeoJSON(path, opts)
	case ".gpkg":
		return OpenGeoPackage(path, opts)
	default:
		return nil, fmt.Errorf("%w: unsupported vector format %q", domain.ErrUnsupported, filepath.Ext(path))
	}
}
