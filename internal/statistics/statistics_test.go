package statistics

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name  string
		bytes float64
		want  string
	}{
		{"zero", 0, "unknown"},
		{"negative", -5, "unknown"},
		{"nan", math.NaN(), "unknown"},
		{"infinite", math.Inf(1), "unknown"},
		{"one byte", 1, "1.0 B"},
		{"small bytes", 512, "512.0 B"},
		{"just below 1 KB", 1023, "1023.0 B"},
		{"exactly 1 KB", 1024, "1.0 KB"},
		{"1.5 KB", 1536, "1.5 KB"},
		{"rounds half up", 1280, "1.3 KB"},
		{"rounds up to next whole", 2047, "2.0 KB"},
		{"rounds down", 1100, "1.1 KB"},
		{"500 KB", 512000, "500.0 KB"},
		{"just below 1 MB", 1024*1024 - 1, "1023.9 KB"},
		{"just below 1 GB", 1024*1024*1024 - 1, "1023.9 MB"},
		{"2 MB", 2097152, "2.0 MB"},
		{"1 GB", 1024 * 1024 * 1024, "1.0 GB"},
		{"capped at GB", 3 * 1024 * 1024 * 1024 * 1024, "3072.0 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}

func TestFormatBytesUnitRanges(t *testing.T) {
	for k, unit := range sizeUnits {
		lower := math.Pow(1024, float64(k))
		upper := math.Pow(1024, float64(k+1))
		for _, n := range []float64{lower, lower + 1, lower * 1.5, lower * 999.99, upper - 1} {
			got := FormatBytes(n)
			parts := strings.SplitN(got, " ", 2)
			require.Len(t, parts, 2, "FormatBytes(%v) = %q", n, got)
			assert.Equal(t, unit, parts[1], "unit for %v", n)

			value, err := strconv.ParseFloat(parts[0], 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, value, 1.0, "value for %v", n)
			assert.Less(t, value, 1024.0, "value for %v", n)
		}
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "unknown", FormatSize(nil))
	size := int64(2048)
	assert.Equal(t, "2.0 KB", FormatSize(&size))
}

func TestSnapshotAndSummary(t *testing.T) {
	s := NewStatistics()
	s.IncrementRunsStarted()
	s.IncrementRunsStarted()
	s.IncrementRunsStarted()
	s.RecordCompression(false, 2097152, 512000)
	s.RecordCompression(true, 0, 1000)
	s.IncrementRunsFailed()
	s.AddError("file:///a.mov", "compress", "boom")

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap.RunsStarted)
	assert.Equal(t, int64(2), snap.RunsCompleted)
	assert.Equal(t, int64(1), snap.ImagesCompressed)
	assert.Equal(t, int64(1), snap.VideosCompressed)
	assert.Equal(t, int64(2097152), snap.BytesIn)
	assert.Equal(t, int64(512000), snap.BytesOut)
	assert.InDelta(t, 75.59, snap.PercentSaved, 0.01)
	assert.Equal(t, 1, snap.Errors)

	summary := s.GetSummary()
	assert.Contains(t, summary, "Original: 2.0 MB")
	assert.Contains(t, summary, "Compressed: 500.0 KB")
	assert.Contains(t, s.GetErrorSummary(), "compress: file:///a.mov - boom")
}

func TestErrorSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No errors occurred during processing", NewStatistics().GetErrorSummary())
}
