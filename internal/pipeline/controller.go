package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-compressor-go/internal/compressor"
	"media-compressor-go/internal/logger"
	"media-compressor-go/internal/media"
	"media-compressor-go/internal/source"
	"media-compressor-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Inspector reports the size of a file.
type Inspector interface {
	Stat(ctx context.Context, path string) (int64, error)
}

// Listener receives a copy of the state after every transition.
// Listeners run synchronously and must not start a new run.
type Listener func(DisplayState)

// Options configures a Controller.
type Options struct {
	Settings    compressor.Settings
	StepTimeout time.Duration // 0 disables
}

// Controller runs the select, compress, inspect pipeline and owns the
// resulting DisplayState.
type Controller struct {
	source      source.Source
	compressor  compressor.Compressor
	inspector   Inspector
	settings    compressor.Settings
	stepTimeout time.Duration
	logger      *logrus.Logger
	stats       *statistics.Statistics

	publishMu  sync.Mutex
	mu         sync.RWMutex
	state      DisplayState
	generation uint64
	cancelRun  context.CancelFunc
	listeners  []Listener
}

// run identifies one pipeline run.
type run struct {
	generation uint64
	id         string
	log        *logrus.Entry
}

// NewController wires the collaborators. stats may be nil.
func NewController(
	src source.Source,
	comp compressor.Compressor,
	ins Inspector,
	opts Options,
	log *logrus.Logger,
	stats *statistics.Statistics,
) *Controller {
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Controller{
		source:      src,
		compressor:  comp,
		inspector:   ins,
		settings:    opts.Settings,
		stepTimeout: opts.StepTimeout,
		logger:      log,
		stats:       stats,
		state:       DisplayState{Phase: PhaseIdle},
	}
}

// Subscribe registers l for every future transition.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// State returns a copy of the current display state.
func (c *Controller) State() DisplayState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Phase
}

// Statistics returns the session counters.
func (c *Controller) Statistics() *statistics.Statistics {
	return c.stats
}

// StartSelection runs the pipeline with the controller's default source.
func (c *Controller) StartSelection(ctx context.Context) (DisplayState, error) {
	return c.StartSelectionFrom(ctx, c.source)
}

// StartSelectionFrom runs the whole pipeline with src and blocks until the run
// reaches a terminal phase or is superseded. The returned error is nil on
// success and for inspection failures, media.ErrSelectionCancelled or
// ErrSelectionEmpty when nothing was picked, ErrSuperseded when a newer run
// took over, and a *CompressionError when compression failed.
func (c *Controller) StartSelectionFrom(parent context.Context, src source.Source) (DisplayState, error) {
	ctx, r := c.beginRun(parent)
	c.stats.IncrementRunsStarted()

	if !c.transition(r, func(s *DisplayState) {
		s.Phase = PhaseSelecting
		s.IsBusy = false
		s.RunID = r.id
		s.StatusLog = "Waiting for a photo or video..."
	}) {
		return c.State(), ErrSuperseded
	}

	if src == nil {
		return c.fail(r, "selection", "", "Selection failed: no media source configured", errors.New("no media source"))
	}

	item, err := c.selectItem(ctx, src)
	switch {
	case !c.isCurrent(r):
		return c.State(), ErrSuperseded
	case errors.Is(err, media.ErrSelectionCancelled):
		return c.finishEmpty(r, "Selection cancelled", media.ErrSelectionCancelled)
	case err != nil:
		return c.fail(r, "selection", "", fmt.Sprintf("Selection failed: %v", err), err)
	case item == nil:
		return c.finishEmpty(r, "Nothing selected", ErrSelectionEmpty)
	}

	kind := media.Classify(*item)
	selected := item.WithKind(kind)
	original := statistics.FormatSize(selected.SizeBytes)
	r.log.WithFields(logrus.Fields{"uri": selected.URI, "kind": kind, "size": original}).Info("Media selected")

	if !c.transition(r, func(s *DisplayState) {
		*s = DisplayState{
			Media:     &selected,
			StatusLog: fmt.Sprintf("%s selected: original %s", kind.Title(), original),
			IsBusy:    true,
			Phase:     PhaseSelected,
			RunID:     r.id,
		}
	}) {
		return c.State(), ErrSuperseded
	}

	if !c.transition(r, func(s *DisplayState) {
		s.Phase = PhaseCompressing
		s.StatusLog = fmt.Sprintf("Compressing %s (original %s)...", kind, original)
	}) {
		return c.State(), ErrSuperseded
	}

	result, err := c.compress(ctx, selected)
	if !c.isCurrent(r) {
		return c.State(), ErrSuperseded
	}
	if err != nil {
		cerr := &CompressionError{Kind: kind, Err: err}
		return c.fail(r, "compress", selected.URI, fmt.Sprintf("Compression failed: %v", err), cerr)
	}

	c.inspect(ctx, r, &result)
	if !c.isCurrent(r) {
		return c.State(), ErrSuperseded
	}

	sizeLabel := statistics.FormatSize(result.OutputSizeBytes)
	if !c.transition(r, func(s *DisplayState) {
		s.Phase = PhaseCompressed
		s.IsBusy = false
		s.CompressedURI = stringPtr(result.OutputURI)
		s.CompressedSizeLabel = stringPtr(sizeLabel)
		s.StatusLog = fmt.Sprintf("%s: original %s → compressed %s", kind.Title(), original, sizeLabel)
	}) {
		return c.State(), ErrSuperseded
	}

	var in, out int64
	if selected.SizeBytes != nil {
		in = *selected.SizeBytes
	}
	if result.OutputSizeBytes != nil {
		out = *result.OutputSizeBytes
	}
	c.stats.RecordCompression(kind == media.KindVideo, in, out)
	r.log.WithFields(logrus.Fields{"output": result.OutputURI, "size": sizeLabel}).Info("Run completed")

	c.endRun(r)
	return c.State(), nil
}

// beginRun supersedes any in-flight run and returns the new run's context.
func (c *Controller) beginRun(parent context.Context) (context.Context, run) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
	}
	if !c.state.Phase.Terminal() {
		c.stats.IncrementRunsSuperseded()
	}
	c.generation++
	c.cancelRun = cancel
	r := run{generation: c.generation, id: uuid.NewString()}
	c.mu.Unlock()

	r.log = logger.WithRun(c.logger, r.id, r.generation)
	r.log.Debug("Run started")
	return ctx, r
}

// endRun releases the run's context if it is still the current one.
func (c *Controller) endRun(r run) {
	c.mu.Lock()
	if c.generation == r.generation && c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.mu.Unlock()
}

func (c *Controller) isCurrent(r run) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation == r.generation
}

// transition applies fn to the state when r is still current and notifies
// listeners. It returns false for a stale run.
func (c *Controller) transition(r run, fn func(*DisplayState)) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.generation != r.generation {
		c.mu.Unlock()
		r.log.Debug("Dropping update from superseded run")
		return false
	}
	fn(&c.state)
	snapshot := c.state.clone()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	r.log.WithField("phase", snapshot.Phase).Debug(snapshot.StatusLog)
	for _, l := range listeners {
		l(snapshot.clone())
	}
	return true
}

// finishEmpty ends a run whose selection produced nothing. Everything except
// the status log is left as it was.
func (c *Controller) finishEmpty(r run, status string, cause error) (DisplayState, error) {
	if !c.transition(r, func(s *DisplayState) {
		s.Phase = PhaseIdle
		s.IsBusy = false
		s.StatusLog = status
	}) {
		return c.State(), ErrSuperseded
	}
	c.stats.IncrementRunsCancelled()
	r.log.Info(status)
	c.endRun(r)
	return c.State(), cause
}

// fail ends a run in PhaseFailed. The rest of the state is left as it was;
// a failed compression never got past PhaseSelected, which already dropped
// the previous result.
func (c *Controller) fail(r run, operation, uri, status string, cause error) (DisplayState, error) {
	if !c.transition(r, func(s *DisplayState) {
		s.Phase = PhaseFailed
		s.IsBusy = false
		s.StatusLog = status
	}) {
		return c.State(), ErrSuperseded
	}
	c.stats.IncrementRunsFailed()
	c.stats.AddError(uri, operation, cause.Error())
	logger.WithOperation(r.log, operation).WithError(cause).Error(status)
	c.endRun(r)
	return c.State(), cause
}

func (c *Controller) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.stepTimeout > 0 {
		return context.WithTimeout(ctx, c.stepTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) selectItem(ctx context.Context, src source.Source) (*media.SelectedMedia, error) {
	stepCtx, cancel := c.stepContext(ctx)
	defer cancel()
	return src.Select(stepCtx, source.DefaultRequest())
}

// compress builds kind-specific options and calls the compressor.
func (c *Controller) compress(ctx context.Context, item media.SelectedMedia) (CompressionResult, error) {
	stepCtx, cancel := c.stepContext(ctx)
	defer cancel()

	opts := c.settings.ForKind(item.Kind)
	out, err := c.compressor.Compress(stepCtx, item.URI, item.Kind, opts)
	if err != nil {
		return CompressionResult{}, err
	}
	if out == "" {
		return CompressionResult{}, errors.New("compressor returned an empty output URI")
	}
	return CompressionResult{OutputURI: out}, nil
}

// inspect fills in the output size. Failures only leave the size unknown.
func (c *Controller) inspect(ctx context.Context, r run, result *CompressionResult) {
	if c.inspector == nil {
		return
	}
	stepCtx, cancel := c.stepContext(ctx)
	defer cancel()

	path := media.PathFromURI(result.OutputURI)
	size, err := c.inspector.Stat(stepCtx, path)
	if err != nil {
		ierr := &InspectionError{Path: path, Err: err}
		logger.WithURI(r.log, result.OutputURI).WithError(ierr).Warn("Could not read compressed file size")
		c.stats.AddError(result.OutputURI, "inspect", ierr.Error())
		return
	}
	result.OutputSizeBytes = &size
}
