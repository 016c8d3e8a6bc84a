package inference

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedGenerator returns canned results per prompt, in call order, and
// records every attempt.
type scriptedGenerator struct {
	mu      sync.Mutex
	scripts map[string][]GenerationResult // per prompt, consumed in order
	errs    map[string]error              // constant error per prompt
	calls   int
	params  []SamplingParams
}

func (g *scriptedGenerator) Generate(_ context.Context, req GenerationRequest, params SamplingParams) (GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.params = append(g.params, params)
	if err, ok := g.errs[req.Prompt]; ok {
		return GenerationResult{}, err
	}
	script := g.scripts[req.Prompt]
	if len(script) == 0 {
		return GenerationResult{Raw: "echo:" + req.Prompt, TokenCount: 1}, nil
	}
	next := script[0]
	g.scripts[req.Prompt] = script[1:]
	return next, nil
}

// markerChecker flags any output containing the LOOP marker.
type markerChecker struct{}

func (markerChecker) DegenerateRaw(raw string, cutFromEnd int) bool {
	if cutFromEnd > 0 && cutFromEnd < len(raw) {
		raw = raw[:len(raw)-cutFromEnd]
	}
	return strings.Contains(raw, "LOOP")
}

func quietConfig() DispatchConfig {
	return DispatchConfig{BackoffUnit: time.Millisecond}
}

func TestDispatch_CleanBatchOneCallPerItem(t *testing.T) {
	// WHAT: N clean items produce exactly N calls and ordered results.
	// WHY: No retries may fire on healthy output, and input order defines
	// output order regardless of completion order.
	gen := &scriptedGenerator{}
	d := NewDispatcher(gen, markerChecker{}, quietConfig())

	const n = 16
	reqs := make([]GenerationRequest, n)
	for i := range reqs {
		reqs[i] = GenerationRequest{Prompt: fmt.Sprintf("p%02d", i)}
	}

	results := d.Dispatch(context.Background(), reqs)
	if len(results) != n {
		t.Fatalf("results = %d, want %d", len(results), n)
	}
	for i, res := range results {
		want := fmt.Sprintf("echo:p%02d", i)
		if res.Raw != want {
			t.Errorf("results[%d].Raw = %q, want %q", i, res.Raw, want)
		}
	}
	if gen.calls != n {
		t.Errorf("calls = %d, want %d", gen.calls, n)
	}
}

func TestDispatch_DegenerateRetriesThenClean(t *testing.T) {
	// WHAT: Two degenerate attempts then a clean one, maxRetries=2: exactly
	// 3 calls, clean result returned, retries use stochastic sampling.
	gen := &scriptedGenerator{scripts: map[string][]GenerationResult{
		"p": {
			{Raw: "LOOP one", TokenCount: 5},
			{Raw: "LOOP two", TokenCount: 5},
			{Raw: "clean", TokenCount: 7},
		},
	}}
	cfg := quietConfig()
	cfg.MaxRetries = 2
	d := NewDispatcher(gen, markerChecker{}, cfg)

	results := d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "p"}})
	if gen.calls != 3 {
		t.Fatalf("calls = %d, want 3", gen.calls)
	}
	if results[0].Raw != "clean" || results[0].TokenCount != 7 {
		t.Errorf("result = %+v, want the clean attempt", results[0])
	}
	if gen.params[0] != deterministicSampling {
		t.Errorf("first attempt params = %+v, want deterministic", gen.params[0])
	}
	for i, p := range gen.params[1:] {
		if p != retrySampling {
			t.Errorf("retry %d params = %+v, want stochastic", i+1, p)
		}
	}
}

func TestDispatch_DegenerateBudgetExhausted(t *testing.T) {
	// WHAT: A persistently degenerate item settles on the last attempt.
	// WHY: Exhaustion returns the result as-is; callers inspect quality.
	gen := &scriptedGenerator{scripts: map[string][]GenerationResult{
		"p": {
			{Raw: "LOOP a"}, {Raw: "LOOP b"}, {Raw: "LOOP c"},
		},
	}}
	cfg := quietConfig()
	cfg.MaxRetries = 2
	d := NewDispatcher(gen, markerChecker{}, cfg)

	results := d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "p"}})
	if gen.calls != 3 {
		t.Fatalf("calls = %d, want 3", gen.calls)
	}
	if results[0].Raw != "LOOP c" {
		t.Errorf("result = %+v, want last attempt returned as-is", results[0])
	}
}

func TestDispatch_TransportErrorExhaustsToFailedResult(t *testing.T) {
	// WHAT: A permanently failing item with maxRetries=1 gets exactly 2
	// attempts and settles as failed with empty text and zero tokens.
	gen := &scriptedGenerator{errs: map[string]error{"p": fmt.Errorf("connection refused")}}
	cfg := quietConfig()
	cfg.MaxRetries = 1
	d := NewDispatcher(gen, markerChecker{}, cfg)

	results := d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "p"}})
	if gen.calls != 2 {
		t.Fatalf("calls = %d, want 2", gen.calls)
	}
	res := results[0]
	if !res.Failed || res.Raw != "" || res.TokenCount != 0 {
		t.Errorf("result = %+v, want failed/empty/zero", res)
	}
}

func TestDispatch_FailureBudgetExtendsRetries(t *testing.T) {
	// WHAT: MaxFailureRetries grants extra attempts for pure failures.
	// WHY: Transient backend outages deserve a larger budget than
	// content-quality retries.
	gen := &scriptedGenerator{errs: map[string]error{"p": fmt.Errorf("boom")}}
	cfg := quietConfig()
	cfg.MaxRetries = 1
	cfg.MaxFailureRetries = 3
	d := NewDispatcher(gen, markerChecker{}, cfg)

	results := d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "p"}})
	// Initial attempt, 1 shared-budget retry, then retries 2 and 3 on the
	// failure budget: 4 calls total.
	if gen.calls != 4 {
		t.Fatalf("calls = %d, want 4", gen.calls)
	}
	if !results[0].Failed {
		t.Errorf("result = %+v, want failed", results[0])
	}
}

func TestDispatch_FailureRecoversMidBudget(t *testing.T) {
	// WHAT: A failure followed by success stops retrying immediately.
	gen := &scriptedGenerator{scripts: map[string][]GenerationResult{
		"p": {
			{Failed: true},
			{Raw: "recovered", TokenCount: 3},
		},
	}}
	cfg := quietConfig()
	cfg.MaxRetries = 5
	d := NewDispatcher(gen, markerChecker{}, cfg)

	results := d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "p"}})
	if gen.calls != 2 {
		t.Fatalf("calls = %d, want 2", gen.calls)
	}
	if results[0].Raw != "recovered" {
		t.Errorf("result = %+v, want recovered", results[0])
	}
}

func TestDispatch_CancelledContext(t *testing.T) {
	// WHAT: A cancelled context still yields one result per input.
	// WHY: The ordering and cardinality contract holds under cancellation.
	gen := &scriptedGenerator{}
	d := NewDispatcher(gen, markerChecker{}, quietConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reqs := make([]GenerationRequest, 5)
	results := d.Dispatch(ctx, reqs)
	if len(results) != 5 {
		t.Fatalf("results = %d, want 5", len(results))
	}
	for i, res := range results {
		if !res.Failed {
			t.Errorf("results[%d] = %+v, want failed for unstarted item", i, res)
		}
	}
	if gen.calls != 0 {
		t.Errorf("calls = %d, want 0 after pre-cancelled ctx", gen.calls)
	}
}

func TestBuildPrompt(t *testing.T) {
	// WHAT: Built-in templates substitute the bbox scale and carry the
	// whitelist; unknown types error.
	p, err := BuildPrompt(PromptOCRLayout, 512)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(p, "normalized 0-512") {
		t.Errorf("bbox scale not substituted: %.120s", p)
	}
	if !strings.Contains(p, "data-bbox") || !strings.Contains(p, "Page-Header") {
		t.Errorf("layout instructions missing")
	}
	if !strings.Contains(p, "math") || !strings.Contains(p, "colspan") {
		t.Errorf("whitelist missing from prompt")
	}

	if _, err := BuildPrompt(PromptType("nope"), 1024); err == nil {
		t.Error("unknown prompt type must error")
	}

	plain, err := BuildPrompt(PromptOCR, 1024)
	if err != nil {
		t.Fatalf("build plain: %v", err)
	}
	if strings.Contains(plain, "data-bbox") {
		t.Errorf("plain OCR prompt must not mention layout bboxes")
	}
}

// recordingChecker records every cutFromEnd it is asked about.
type recordingChecker struct {
	mu   sync.Mutex
	cuts []int
}

func (c *recordingChecker) DegenerateRaw(_ string, cutFromEnd int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cuts = append(c.cuts, cutFromEnd)
	return false
}

func TestDispatch_TailCutGateCountsRunes(t *testing.T) {
	// WHAT: The 50-character gate for the tail-cut repeat check counts
	// runes. Multibyte output of 50 runes gets only the full-text check,
	// even though it is over 50 bytes long.
	short := strings.Repeat("é", 50) // 50 runes, 100 bytes
	long := strings.Repeat("é", 51)

	gen := &scriptedGenerator{scripts: map[string][]GenerationResult{
		"short": {{Raw: short, TokenCount: 1}},
		"long":  {{Raw: long, TokenCount: 1}},
	}}
	checker := &recordingChecker{}
	d := NewDispatcher(gen, checker, quietConfig())

	d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "short"}})
	if len(checker.cuts) != 1 || checker.cuts[0] != 0 {
		t.Errorf("cuts for 50-rune output = %v, want [0]", checker.cuts)
	}

	checker.cuts = nil
	d.Dispatch(context.Background(), []GenerationRequest{{Prompt: "long"}})
	if len(checker.cuts) != 2 || checker.cuts[1] != 50 {
		t.Errorf("cuts for 51-rune output = %v, want [0 50]", checker.cuts)
	}
}
