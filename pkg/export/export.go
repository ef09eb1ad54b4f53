// Package export writes stored analytics as CSV or JSON documents
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var ErrUnknownFormat = fmt.Errorf("unknown export format, expected %s or %s", FormatCSV, FormatJSON)

func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}

	return "application/json"
}

func WriteRouteDelays(writer io.Writer, format string, delays []*ctdf.RouteDelay) error {
	if delays == nil {
		delays = []*ctdf.RouteDelay{}
	}

	return write(writer, format, delays)
}

func WriteRouteMetrics(writer io.Writer, format string, routeMetrics []*analytics.RouteMetrics) error {
	if routeMetrics == nil {
		routeMetrics = []*analytics.RouteMetrics{}
	}

	return write(writer, format, routeMetrics)
}

func write(writer io.Writer, format string, records any) error {
	switch format {
	case FormatCSV:
		return gocsv.Marshal(records, writer)
	case FormatJSON:
		encoder := json.NewEncoder(writer)
		encoder.SetIndent("", "  ")

		return encoder.Encode(records)
	default:
		return ErrUnknownFormat
	}
}
