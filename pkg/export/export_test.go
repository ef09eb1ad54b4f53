package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transit-telemetry/pkg/analytics"
	"github.com/travigo/transit-telemetry/pkg/ctdf"
)

var testDelays = []*ctdf.RouteDelay{
	{RouteID: "Red", HourOfDay: 8, AvgDelayMinutes: 3, SampleCount: 2, CalculatedAt: time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)},
	{RouteID: "Red", HourOfDay: 9, AvgDelayMinutes: -1, SampleCount: 5, CalculatedAt: time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)},
}

func TestWriteRouteDelaysCSV(t *testing.T) {
	var output bytes.Buffer
	require.NoError(t, WriteRouteDelays(&output, FormatCSV, testDelays))

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "route_id,hour_of_day,avg_delay_minutes,sample_count,calculated_at", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Red,8,"))
	assert.True(t, strings.HasPrefix(lines[2], "Red,9,"))
}

func TestWriteRouteDelaysJSON(t *testing.T) {
	var output bytes.Buffer
	require.NoError(t, WriteRouteDelays(&output, FormatJSON, testDelays))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(output.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, float64(9), decoded[1]["HourOfDay"])
}

func TestWriteEmptyJSONIsArray(t *testing.T) {
	var output bytes.Buffer
	require.NoError(t, WriteRouteMetrics(&output, FormatJSON, nil))

	assert.Equal(t, "[]", strings.TrimSpace(output.String()))
}

func TestWriteRouteMetricsCSVHeader(t *testing.T) {
	var output bytes.Buffer
	require.NoError(t, WriteRouteMetrics(&output, FormatCSV, []*analytics.RouteMetrics{{RouteID: "Blue"}}))

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "route_id,average_delay_minutes,"))
}

func TestUnknownFormat(t *testing.T) {
	var output bytes.Buffer
	assert.ErrorIs(t, WriteRouteDelays(&output, "xml", testDelays), ErrUnknownFormat)
}
