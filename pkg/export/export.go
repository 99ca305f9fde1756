// Package export writes decision log records for offline analysis.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/kilianp07/evreco/core/decisionlog"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, records []decisionlog.Record) error {
	if records == nil {
		records = []decisionlog.Record{}
	}
	return json.NewEncoder(w).Encode(records)
}

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"request_id", "timestamp", "source", "fallback_reason", "lat", "lng",
	"charger_type", "rank", "station_id", "score", "predicted_wait_time", "distance",
}

// WriteCSV writes one row per ranked station. A record with an empty list
// yields a single row with blank item columns.
func WriteCSV(w io.Writer, records []decisionlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		base := []string{
			r.RequestID,
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Source,
			r.FallbackReason,
			formatFloat(r.Lat),
			formatFloat(r.Lng),
			r.ChargerType,
		}
		if len(r.Items) == 0 {
			if err := cw.Write(append(base, "", "", "", "", "")); err != nil {
				return err
			}
			continue
		}
		for i, it := range r.Items {
			row := append(append([]string(nil), base...),
				strconv.Itoa(i+1),
				strconv.FormatInt(it.StationID, 10),
				formatFloat(it.Score),
				strconv.Itoa(it.PredictedWaitTime),
				formatFloat(it.Distance),
			)
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
