package statistics

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Statistics contains counters for all pipeline runs of a session.
type Statistics struct {
	RunsStarted    int64
	RunsCompleted  int64
	RunsFailed     int64
	RunsCancelled  int64
	RunsSuperseded int64

	ImagesCompressed int64
	VideosCompressed int64

	BytesIn  int64
	BytesOut int64

	StartTime time.Time

	Errors []StatError

	mutex sync.RWMutex
}

// StatError represents an error that occurred during a run.
type StatError struct {
	URI       string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// IncrementRunsStarted increases the count of started runs by 1.
func (s *Statistics) IncrementRunsStarted() {
	atomic.AddInt64(&s.RunsStarted, 1)
}

// IncrementRunsFailed increases the count of failed runs by 1.
func (s *Statistics) IncrementRunsFailed() {
	atomic.AddInt64(&s.RunsFailed, 1)
}

// IncrementRunsCancelled increases the count of cancelled or empty selections by 1.
func (s *Statistics) IncrementRunsCancelled() {
	atomic.AddInt64(&s.RunsCancelled, 1)
}

// IncrementRunsSuperseded increases the count of runs replaced by a newer one.
func (s *Statistics) IncrementRunsSuperseded() {
	atomic.AddInt64(&s.RunsSuperseded, 1)
}

// RecordCompression counts a completed run. Unknown sizes (<= 0) are not added
// to the byte totals.
func (s *Statistics) RecordCompression(video bool, bytesIn, bytesOut int64) {
	atomic.AddInt64(&s.RunsCompleted, 1)
	if video {
		atomic.AddInt64(&s.VideosCompressed, 1)
	} else {
		atomic.AddInt64(&s.ImagesCompressed, 1)
	}
	if bytesIn > 0 && bytesOut > 0 {
		atomic.AddInt64(&s.BytesIn, bytesIn)
		atomic.AddInt64(&s.BytesOut, bytesOut)
	}
}

// AddError records an error that occurred during a run.
func (s *Statistics) AddError(uri, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		URI:       uri,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Snapshot is a point-in-time copy of the counters, safe to serialise.
type Snapshot struct {
	RunsStarted      int64   `json:"runs_started"`
	RunsCompleted    int64   `json:"runs_completed"`
	RunsFailed       int64   `json:"runs_failed"`
	RunsCancelled    int64   `json:"runs_cancelled"`
	RunsSuperseded   int64   `json:"runs_superseded"`
	ImagesCompressed int64   `json:"images_compressed"`
	VideosCompressed int64   `json:"videos_compressed"`
	BytesIn          int64   `json:"bytes_in"`
	BytesOut         int64   `json:"bytes_out"`
	PercentSaved     float64 `json:"percent_saved"`
	Errors           int     `json:"errors"`
}

// Snapshot returns the current counter values.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	errCount := len(s.Errors)
	s.mutex.RUnlock()

	snap := Snapshot{
		RunsStarted:      atomic.LoadInt64(&s.RunsStarted),
		RunsCompleted:    atomic.LoadInt64(&s.RunsCompleted),
		RunsFailed:       atomic.LoadInt64(&s.RunsFailed),
		RunsCancelled:    atomic.LoadInt64(&s.RunsCancelled),
		RunsSuperseded:   atomic.LoadInt64(&s.RunsSuperseded),
		ImagesCompressed: atomic.LoadInt64(&s.ImagesCompressed),
		VideosCompressed: atomic.LoadInt64(&s.VideosCompressed),
		BytesIn:          atomic.LoadInt64(&s.BytesIn),
		BytesOut:         atomic.LoadInt64(&s.BytesOut),
		Errors:           errCount,
	}
	if snap.BytesIn > 0 {
		snap.PercentSaved = float64(snap.BytesIn-snap.BytesOut) * 100 / float64(snap.BytesIn)
	}
	return snap
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	snap := s.Snapshot()
	return fmt.Sprintf(`Media Compressor Statistics Summary:

Runs:
		Started: %d
		Completed: %d
		Failed: %d
		Cancelled: %d
		Superseded: %d

Media:
		Images Compressed: %d
		Videos Compressed: %d

Size:
		Original: %s
		Compressed: %s
		Saved: %.1f%%

Session:
		Duration: %v
		Errors: %d`,
		snap.RunsStarted,
		snap.RunsCompleted,
		snap.RunsFailed,
		snap.RunsCancelled,
		snap.RunsSuperseded,
		snap.ImagesCompressed,
		snap.VideosCompressed,
		FormatBytes(float64(snap.BytesIn)),
		FormatBytes(float64(snap.BytesOut)),
		snap.PercentSaved,
		time.Since(s.StartTime).Round(time.Second),
		snap.Errors)
}

// GetErrorSummary returns a summary of errors that occurred during the session.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			fmt.Fprintf(&b, "  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		fmt.Fprintf(&b, "  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.URI,
			err.Error)
	}
	return b.String()
}

// UnknownSize is shown for sizes that are missing or not positive.
const UnknownSize = "unknown"

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes returns a human-readable size using base-1024 units with one
// decimal. The unit is the largest one whose scaled value is at least 1, capped
// at GB. The decimal is rounded half up, except that a value which would
// round up to 1024.0 is shown as 1023.9 so the unit stays put.
// Zero, negative, NaN and infinite inputs yield "unknown".
func FormatBytes(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return UnknownSize
	}
	exp := 0
	if n >= 1 {
		exp = int(math.Floor(math.Log(n) / math.Log(1024)))
	}
	// Log can land one unit off right at the boundaries.
	for exp > 0 && n < math.Pow(1024, float64(exp)) {
		exp--
	}
	for exp < len(sizeUnits)-1 && n >= math.Pow(1024, float64(exp+1)) {
		exp++
	}
	if exp >= len(sizeUnits) {
		exp = len(sizeUnits) - 1
	}
	value := n / math.Pow(1024, float64(exp))
	value = math.Round(value*10) / 10
	if value >= 1024 && n < math.Pow(1024, float64(exp+1)) {
		value = 1023.9
	}
	return fmt.Sprintf("%.1f %s", value, sizeUnits[exp])
}

// FormatSize formats an optional byte count; nil yields "unknown".
func FormatSize(size *int64) string {
	if size == nil {
		return UnknownSize
	}
	return FormatBytes(float64(*size))
}
