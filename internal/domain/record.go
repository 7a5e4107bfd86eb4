package domain

// TimeSeriesRecord is one extracted raster sample: the value of the
// configured variable at one cell of one region at one time step. Records
// are produced transiently by the extractor and streamed to the dump sink.
type TimeSeriesRecord struct {
	RegionID  string
	Row       int
	Col       int
	TimeIndex int
	Value     float64
}
