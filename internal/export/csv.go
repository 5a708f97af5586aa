// Package export serialises search results for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"amenity/internal/models"
)

const (
	CSVFilename    = "buildings.csv"
	CSVContentType = "text/csv;charset=utf-8"
)

var header = []string{"name", "lat", "lon"}

// EncodeCSV writes records as CSV with a name,lat,lon header row.
func EncodeCSV(records []models.AmenityRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.Name,
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCSV reads a file produced by EncodeCSV.
func DecodeCSV(r io.Reader) ([]models.AmenityRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, col := range header {
		if head[i] != col {
			return nil, fmt.Errorf("unexpected csv column %d: %q", i, head[i])
		}
	}

	var records []models.AmenityRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		records = append(records, models.AmenityRecord{Name: row[0], Latitude: lat, Longitude: lon})
	}
	return records, nil
}
