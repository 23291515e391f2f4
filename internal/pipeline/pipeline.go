// Package pipeline orchestrates the extract-assess-load loop: raw sensor
// samples come in from the source, each station's sample is normalized,
// scored, and correlated against its history, and the cycle's results go out
// through the sink. History and offsets advance only after the sink accepts
// the cycle, so a crashed cycle is replayed rather than lost.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/history"
	"github.com/airshedlabs/enviro-risk-service/internal/observability"
)

// SampleSource reads up to batchSize raw events from the ingest topic.
type SampleSource interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// ResultSink persists one cycle's results. LoadCycle must be all-or-nothing
// from the pipeline's point of view: on error the whole cycle is retried.
type ResultSink interface {
	LoadCycle(ctx context.Context, results []domain.CycleResult) error
}

// Config holds the analytical tunables the pipeline applies each cycle.
type Config struct {
	BatchSize   int
	Normalizer  domain.NormalizerConfig
	Risk        domain.RiskConfig
	Correlation domain.CorrelationConfig
}

// Pipeline runs the monitoring loop.
type Pipeline struct {
	source  SampleSource
	sink    ResultSink
	hist    *history.Store
	logger  *slog.Logger
	metrics *observability.Metrics
	cfg     Config
	ready   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(source SampleSource, sink ResultSink, hist *history.Store, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Pipeline{
		source:  source,
		sink:    sink,
		hist:    hist,
		logger:  logger,
		metrics: metrics,
		cfg:     cfg,
	}
}

// History exposes the pipeline's reading window for the reports service.
func (p *Pipeline) History() *history.Store {
	return p.hist
}

// CheckReadiness returns nil once the pipeline has completed at least one
// cycle, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a cycle yet")
	}
	return nil
}

// Run executes the monitoring loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.cfg.BatchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processCycle(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// locSample pairs a parsed sample with the event it came from, so the offset
// can be committed once the sample's result is durable.
type locSample struct {
	sample domain.RawSample
	raw    domain.RawEvent
}

// processCycle runs one extract-assess-load cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processCycle(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.source.ExtractBatch(ctx, p.cfg.BatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.SamplesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = 200 * time.Millisecond

	byLocation := p.parseBatch(ctx, rawBatch)
	if len(byLocation) == 0 {
		return true
	}

	results := p.assessLocations(byLocation)
	if len(results) == 0 {
		return true
	}

	if err := p.sink.LoadCycle(ctx, cycleResults(results)); err != nil {
		p.logger.Error("load cycle failed", "error", err, "results", len(results))
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	// The cycle is durable: only now do readings enter the history window and
	// offsets advance. A crash before this point replays the batch.
	for _, r := range results {
		p.hist.Append(r.result.Reading)
		for _, raw := range r.raws {
			p.commitOffset(ctx, raw)
		}
	}

	p.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	return true
}

// parseBatch decodes the batch and groups samples by station, preserving
// arrival order within each station. Undecodable events are logged, counted,
// and committed so they are not replayed forever.
func (p *Pipeline) parseBatch(ctx context.Context, rawBatch []domain.RawEvent) map[string][]locSample {
	byLocation := make(map[string][]locSample)
	for _, raw := range rawBatch {
		sample, err := domain.ParseRawSample(raw)
		if err != nil {
			p.logger.Warn("sample parse failed, skipping",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ParseErrors.Inc()
			p.commitOffset(ctx, raw)
			continue
		}
		byLocation[sample.LocationID] = append(byLocation[sample.LocationID], locSample{sample: sample, raw: raw})
	}
	return byLocation
}

// sinkResult carries one reading's outcome plus the raw events to commit once
// the sink accepts the cycle.
type sinkResult struct {
	result domain.CycleResult
	raws   []domain.RawEvent
}

// assessLocations processes each station concurrently. Stations are
// independent; a failure in one never blocks the rest of the cycle.
func (p *Pipeline) assessLocations(byLocation map[string][]locSample) []sinkResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []sinkResult
	)

	for loc, samples := range byLocation {
		wg.Add(1)
		go func(loc string, samples []locSample) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("location processing failed", "location", loc, "panic", r)
					p.metrics.LocationFailures.Inc()
				}
			}()

			locResults := p.assessLocation(loc, samples)

			mu.Lock()
			results = append(results, locResults...)
			mu.Unlock()
		}(loc, samples)
	}
	wg.Wait()

	// Map iteration order is random; sort for a reproducible sink payload.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].result.Reading, results[j].result.Reading
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return results
}

// assessLocation runs the analytical stages for one station's samples in
// arrival order. Readings produced earlier in the batch feed the history of
// later ones even though the shared store is only updated after the sink
// accepts the cycle.
func (p *Pipeline) assessLocation(loc string, samples []locSample) []sinkResult {
	var (
		pending []domain.SensorReading // newest first, this batch only
		out     []sinkResult
	)

	for _, s := range samples {
		hist := append(append([]domain.SensorReading{}, pending...), p.hist.Recent(loc, p.cfg.Normalizer.SmoothingWindow+p.cfg.Correlation.StagnationRuns)...)

		reading := domain.Normalize(s.sample, hist, p.cfg.Normalizer)
		p.metrics.NormalizerFallbacks.Add(float64(len(reading.Stale)))

		assessment := domain.Score(reading, p.cfg.Risk)
		correlations := domain.Detect(reading, hist, p.cfg.Correlation)
		for _, e := range correlations {
			p.metrics.CorrelationsFired.WithLabelValues(string(e.Type)).Inc()
		}

		alert := domain.GenerateAlert(assessment, correlations, p.cfg.Risk)
		if alert != nil {
			p.metrics.AlertsGenerated.WithLabelValues(string(assessment.Level)).Inc()
			p.logger.Info("alert generated",
				"alert_id", alert.ID,
				"location", loc,
				"level", assessment.Level,
				"score", assessment.Score,
			)
		}

		out = append(out, sinkResult{
			result: domain.CycleResult{
				Reading:      reading,
				Assessment:   assessment,
				Correlations: correlations,
				Alert:        alert,
			},
			raws: []domain.RawEvent{s.raw},
		})
		pending = append([]domain.SensorReading{reading}, pending...)
	}
	return out
}

func cycleResults(results []sinkResult) []domain.CycleResult {
	out := make([]domain.CycleResult, len(results))
	for i, r := range results {
		out[i] = r.result
	}
	return out
}

// backoffOrStop checks for context cancellation, sleeps with the current
// backoff, and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the event offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
