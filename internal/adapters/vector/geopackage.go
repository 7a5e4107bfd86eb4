package vector

import (
	"database/sql"
	"fmt"
	"io"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/jobrunner/tessera/internal/domain"
	"github.com/jobrunner/tessera/internal/ports/output"
)

// GeoPackage streams region records from a GeoPackage feature table. The
// file is opened read-only; geometry blobs are parsed directly (GeoPackage
// binary header followed by standard WKB), so no SpatiaLite extension is
// needed.
type GeoPackage struct {
	db      *sql.DB
	rows    *sql.Rows
	path    string
	idField string
	row     int
}

// OpenGeoPackage opens path and starts a scan over the configured layer.
func OpenGeoPackage(path string, opts Options) (*GeoPackage, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&cache=shared", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, &domain.SourceError{Operation: "open", Path: path, Err: err}
	}

	table, geomCol, err := resolveLayer(db, opts.Layer)
	if err != nil {
		_ = db.Close()
		return nil, &domain.SourceError{Operation: "resolve layer", Path: path, Err: err}
	}

	query := fmt.Sprintf(`SELECT "%s", "%s" FROM "%s"`, opts.IDField, geomCol, table) //#nosec G201 -- identifiers from gpkg metadata tables
	rows, err := db.Query(query)
	if err != nil {
		_ = db.Close()
		return nil, &domain.SourceError{Operation: "query", Path: path, Err: err}
	}

	return &GeoPackage{db: db, rows: rows, path: path, idField: opts.IDField}, nil
}

// resolveLayer finds the feature table and its geometry column. An empty
// layer name picks the first feature table registered in gpkg_contents.
func resolveLayer(db *sql.DB, layer string) (table, geomCol string, err error) {
	query := `
		SELECT c.table_name, g.column_name
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'`
	args := []interface{}{}
	if layer != "" {
		query += ` AND c.table_name = ?`
		args = append(args, layer)
	}
	query += ` ORDER BY c.table_name LIMIT 1`

	err = db.QueryRow(query, args...).Scan(&table, &geomCol)
	if err == sql.ErrNoRows {
		return "", "", domain.ErrLayerNotFound
	}
	return table, geomCol, err
}

// Next returns the next record, or io.EOF when the table is exhausted.
func (g *GeoPackage) Next() (*output.VectorRecord, error) {
	if !g.rows.Next() {
		if err := g.rows.Err(); err != nil {
			return nil, &domain.SourceError{Operation: "scan", Path: g.path, Err: err}
		}
		return nil, io.EOF
	}
	row := g.row
	g.row++

	var rawID interface{}
	var blob []byte
	if err := g.rows.Scan(&rawID, &blob); err != nil {
		return nil, &domain.SourceError{Operation: "scan", Path: g.path, Err: err}
	}

	id := gpkgID(rawID)
	if id == "" {
		return nil, &domain.ParseError{Source: g.path, Record: row, Err: domain.ErrIDFieldMissing}
	}

	geomBytes, err := stripGpkgHeader(blob)
	if err != nil {
		return nil, &domain.ParseError{Source: g.path, Record: row, Err: err}
	}

	geometry, err := wkb.Unmarshal(geomBytes)
	if err != nil {
		return nil, &domain.ParseError{Source: g.path, Record: row, Err: err}
	}

	polys, err := fromOrb(geometry)
	if err != nil {
		return nil, &domain.ParseError{Source: g.path, Record: row, Err: err}
	}

	return &output.VectorRecord{ID: id, Polygons: polys}, nil
}

func gpkgID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// envelopeSizes maps the envelope indicator code from the GeoPackage
// binary header flags to the envelope's byte length.
var envelopeSizes = [...]int{0, 32, 48, 48, 64}

// stripGpkgHeader returns the WKB payload of a GeoPackage geometry blob.
// The blob starts with a fixed 8-byte header (magic "GP", version, flags,
// srid) followed by an optional envelope whose size is encoded in the
// flags byte.
func stripGpkgHeader(blob []byte) ([]byte, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, fmt.Errorf("%w: not a GeoPackage geometry blob", domain.ErrInvalidInput)
	}
	flags := blob[3]
	if flags&0x20 != 0 {
		return nil, fmt.Errorf("%w: geometry blob is empty", domain.ErrInvalidInput)
	}
	envCode := int(flags>>1) & 0x7
	if envCode >= len(envelopeSizes) {
		return nil, fmt.Errorf("%w: invalid envelope indicator %d", domain.ErrInvalidInput, envCode)
	}
	headerLen := 8 + envelopeSizes[envCode]
	if len(blob) < headerLen {
		return nil, fmt.Errorf("%w: truncated geometry blob", domain.ErrInvalidInput)
	}
	return blob[headerLen:], nil
}

// Close releases the scan and the database handle.
func (g *GeoPackage) Close() error {
	_ = g.rows.Close()
	return g.db.Close()
}
