package vector

import (
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// GeoJSON streams region records from a GeoJSON feature collection. The
// whole collection is decoded up front; GeoJSON has no record framing
// that would allow streaming a single file.
type GeoJSON struct {
	path     string
	idField  string
	features []*geojson.Feature
	pos      int
}

// OpenGeoJSON reads and decodes the feature collection at path.
func OpenGeoJSON(path string, opts Options) (*GeoJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, &domain.SourceError{Operation: "decode", Path: path, Err: err}
	}

	return &GeoJSON{path: path, idField: opts.IDField, features: fc.Features}, nil
}

// Next returns the next record, or io.EOF when the collection is
// exhausted.
func (g *GeoJSON) Next() (*output.VectorRecord, error) {
	if g.pos >= len(g.features) {
		return nil, io.EOF
	}
	f := g.features[g.pos]
	row := g.pos
	g.pos++

	id := featureID(f, g.idField)
	if id == "" {
		return nil, &domain.ParseError{
			Source: g.path,
			Record: row,
			Err:    domain.ErrIDFieldMissing,
		}
	}

	polys, err := fromOrb(f.Geometry)
	if err != nil {
		return nil, &domain.ParseError{Source: g.path, Record: row, Err: err}
	}

	return &output.VectorRecord{ID: id, Polygons: polys}, nil
}

// featureID resolves the region identifier from the configured property,
// falling back to the feature's top-level id.
func featureID(f *geojson.Feature, idField string) string {
	if v, ok := f.Properties[idField]; ok {
		return stringify(v)
	}
	if f.ID != nil {
		return stringify(f.ID)
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Close is a no-op; the file is fully read at open time.
func (g *GeoJSON) Close() error {
	g.features = nil
	return nil
}
