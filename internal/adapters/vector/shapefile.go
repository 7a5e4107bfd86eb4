package vector

import (
	"io"

	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// Shapefile streams region records from an ESRI shapefile. When a target
// projection is configured, geometries are transformed from the
// shapefile's spatial reference (read from the .prj sidecar) before they
// are returned.
type Shapefile struct {
	dec     *shp.Decoder
	path    string
	idField string
	trans   proj.Transformer
	row     int
}

// OpenShapefile opens path and prepares the optional reprojection.
func OpenShapefile(path string, opts Options) (*Shapefile, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}

	s := &Shapefile{dec: dec, path: path, idField: opts.IDField}

	if opts.GridProj != "" {
		srcSR, err := dec.SR()
		if err != nil {
			dec.Close()
			return nil, &domain.SourceError{Operation: "read projection", Path: path, Err: err}
		}
		dstSR, err := proj.Parse(opts.GridProj)
		if err != nil {
			dec.Close()
			return nil, &domain.SourceError{Operation: "parse grid projection", Path: path, Err: err}
		}
		s.trans, err = srcSR.NewTransform(dstSR)
		if err != nil {
			dec.Close()
			return nil, &domain.SourceError{Operation: "build transform", Path: path, Err: err}
		}
	}

	return s, nil
}

// Next returns the next record, or io.EOF when the file is exhausted.
func (s *Shapefile) Next() (*output.VectorRecord, error) {
	g, fields, more := s.dec.DecodeRowFields(s.idField)
	if !more {
		if err := s.dec.Error(); err != nil {
			return nil, &domain.SourceError{Operation: "decode", Path: s.path, Err: err}
		}
		return nil, io.EOF
	}
	row := s.row
	s.row++

	id, ok := fields[s.idField]
	if !ok || id == "" {
		return nil, &domain.ParseError{
			Source: s.path,
			Record: row,
			Err:    domain.ErrIDFieldMissing,
		}
	}

	if s.trans != nil {
		gg, err := g.Transform(s.trans)
		if err != nil {
			return nil, &domain.ParseError{Source: s.path, Record: row, Err: err}
		}
		g = gg
	}

	polys, err := fromGeom(g)
	if err != nil {
		return nil, &domain.ParseError{Source: s.path, Record: row, Err: err}
	}

	return &output.VectorRecord{ID: id, Polygons: polys}, nil
}

// Close releases the underlying file handles.
func (s *Shapefile) Close() error {
	s.dec.Close()
	return nil
}
