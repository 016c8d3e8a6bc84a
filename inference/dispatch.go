// CLAUDE:SUMMARY Bounded worker pool dispatching generation with degenerate-output and failure retries plus linear backoff.
package inference

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
)

// RepeatChecker flags degenerate generation output. Satisfied by
// markdown.RepeatDetector.
type RepeatChecker interface {
	DegenerateRaw(raw string, cutFromEnd int) bool
}

// DispatchConfig configures the batch dispatcher.
type DispatchConfig struct {
	// MaxWorkers bounds concurrent items. Default: min(64, batch size).
	MaxWorkers int `yaml:"max_workers"`
	// MaxRetries is the shared retry budget per item, covering both
	// degenerate output and transport failures. Default: 6.
	MaxRetries int `yaml:"max_retries"`
	// MaxFailureRetries is an independent, typically larger budget spent
	// only on transport failures. Zero disables it.
	MaxFailureRetries int `yaml:"max_failure_retries"`
	// BackoffUnit scales the linear backoff after transport failures: the
	// n-th retry waits 2*n units. Default: 1 second.
	BackoffUnit time.Duration `yaml:"backoff_unit"`
	// Logger for retry events.
	Logger *slog.Logger `yaml:"-"`
}

func (c *DispatchConfig) defaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 6
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Dispatcher fans a batch of generation requests out to the backend.
//
// Each item's full attempt sequence runs on one worker; items share nothing
// but the transport client. The result slice always has exactly one entry
// per input, in input order, regardless of completion order or failures.
type Dispatcher struct {
	gen     Generator
	checker RepeatChecker
	config  DispatchConfig
}

// NewDispatcher creates a Dispatcher around a generation capability.
func NewDispatcher(gen Generator, checker RepeatChecker, cfg DispatchConfig) *Dispatcher {
	cfg.defaults()
	return &Dispatcher{gen: gen, checker: checker, config: cfg}
}

// Dispatch processes the batch and returns one settled result per request.
//
// Cancelling ctx stops new attempts: items not yet started return a failed
// result, in-flight attempts observe ctx through the backend call, and
// ordering is unaffected.
func (d *Dispatcher) Dispatch(ctx context.Context, requests []GenerationRequest) []GenerationResult {
	results := make([]GenerationResult, len(requests))

	workers := d.config.MaxWorkers
	if workers <= 0 {
		workers = min(64, len(requests))
	}
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	for i := range requests {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = GenerationResult{Failed: true}
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = d.processItem(ctx, requests[i])
		}(i)
	}
	wg.Wait()
	return results
}

// processItem runs the initial deterministic attempt and the retry loop for
// one item. Retries deliberately switch to stochastic sampling to escape
// degenerate loops.
func (d *Dispatcher) processItem(ctx context.Context, req GenerationRequest) GenerationResult {
	result := d.attempt(ctx, req, deterministicSampling)

	retries := 0
	for {
		retry, backoff := d.shouldRetry(result, retries)
		if !retry {
			return result
		}
		if backoff && !d.sleep(ctx, time.Duration(2*(retries+1))*d.config.BackoffUnit) {
			return result
		}
		if ctx.Err() != nil {
			return result
		}
		result = d.attempt(ctx, req, retrySampling)
		retries++
	}
}

// attempt converts transport errors into a failed result so one bad item can
// never abort the pool.
func (d *Dispatcher) attempt(ctx context.Context, req GenerationRequest, params SamplingParams) GenerationResult {
	result, err := d.gen.Generate(ctx, req, params)
	if err != nil {
		d.config.Logger.Warn("dispatch: generation failed", "error", err)
		return GenerationResult{Failed: true}
	}
	return result
}

// shouldRetry applies the retry policy in order: degenerate output within the
// shared budget, transport failure within the shared budget (with backoff),
// then transport failure within the failure-only budget (with backoff).
func (d *Dispatcher) shouldRetry(result GenerationResult, retries int) (retry, backoff bool) {
	if retries < d.config.MaxRetries && d.hasRepeats(result.Raw) {
		d.config.Logger.Warn("dispatch: degenerate output, retrying", "attempt", retries+1)
		return true, false
	}
	if retries < d.config.MaxRetries && result.Failed {
		d.config.Logger.Warn("dispatch: backend failure, retrying", "attempt", retries+1)
		return true, true
	}
	if result.Failed && d.config.MaxFailureRetries > 0 && retries < d.config.MaxFailureRetries {
		d.config.Logger.Warn("dispatch: backend failure, retrying on failure budget", "attempt", retries+1)
		return true, true
	}
	return false, false
}

// hasRepeats runs the degenerate check on the full text and, for longer
// output, again with the last 50 characters excluded. Either firing triggers
// a retry: a short clean tail must not mask a loop. The length gate counts
// runes to match the rune-based cut in the detector.
func (d *Dispatcher) hasRepeats(raw string) bool {
	if d.checker == nil {
		return false
	}
	return d.checker.DegenerateRaw(raw, 0) ||
		(utf8.RuneCountInString(raw) > 50 && d.checker.DegenerateRaw(raw, 50))
}

// sleep waits for the backoff duration, returning false when ctx is done.
func (d *Dispatcher) sleep(ctx context.Context, dur time.Duration) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
