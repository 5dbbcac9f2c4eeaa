// Package pipeline runs the image generation batch: decide per record whether an image
// is needed, generate it, store it, stamp the record and write the collections back.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"oops/internal/assets/core"
	"oops/internal/exercise"
	"oops/internal/imagegen"
	"oops/internal/logging"
	"oops/internal/metrics"
	"oops/internal/prompt"
	"oops/internal/store"
)

// Defaults mirror the published asset layout and the free-tier pacing of the service.
const (
	DefaultURLPrefix      = "/icons/exercises"
	DefaultExt            = ".png"
	DefaultDelay          = 600 * time.Millisecond
	DefaultFailureBackoff = 2.0
)

// RecordStore loads and persists the record collections.
type RecordStore interface {
	Load(ctx context.Context, categoryFilter string) ([]*exercise.Entry, error)
	WriteBack(ctx context.Context, entries []*exercise.Entry) ([]store.FileReport, error)
}

// Deps are the collaborators of a run. Generator and Assets may be nil in a dry run.
type Deps struct {
	Records    RecordStore
	Compositor *prompt.Compositor
	Generator  imagegen.Generator
	Assets     core.Store
	Metrics    *metrics.Batch
}

// Options control one run.
type Options struct {
	Category string
	DryRun   bool
	Force    bool
	// Only forces regeneration of these ids in addition to Force.
	Only []string

	URLPrefix string
	Ext       string

	// Delay follows every successful generation; a failure waits Delay*FailureBackoff.
	Delay          time.Duration
	FailureBackoff float64

	// Concurrency bounds parallel records (default 1, strictly sequential).
	Concurrency int
	// RateLimit caps service calls per second across workers; 0 disables it.
	RateLimit float64
	// Timeout bounds a single service call; 0 means no per-call limit.
	Timeout time.Duration
}

// DefaultOptions returns the reference pacing.
func DefaultOptions() Options {
	return Options{
		URLPrefix:      DefaultURLPrefix,
		Ext:            DefaultExt,
		Delay:          DefaultDelay,
		FailureBackoff: DefaultFailureBackoff,
		Concurrency:    1,
	}
}

// Orchestrator executes runs with fixed dependencies and options.
type Orchestrator struct {
	deps   Deps
	opts   Options
	forced map[string]bool

	sleep func(ctx context.Context, d time.Duration) error
}

// New validates dependencies and fills option defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Records == nil {
		return nil, fmt.Errorf("pipeline: record store required")
	}
	if deps.Compositor == nil {
		return nil, fmt.Errorf("pipeline: prompt compositor required")
	}
	if !opts.DryRun && (deps.Generator == nil || deps.Assets == nil) {
		return nil, fmt.Errorf("pipeline: generator and asset store required outside dry run")
	}

	if opts.URLPrefix == "" {
		opts.URLPrefix = DefaultURLPrefix
	}
	opts.URLPrefix = strings.TrimRight(opts.URLPrefix, "/")
	if opts.Ext == "" {
		opts.Ext = DefaultExt
	}
	if !strings.HasPrefix(opts.Ext, ".") {
		opts.Ext = "." + opts.Ext
	}
	if opts.FailureBackoff <= 0 {
		opts.FailureBackoff = DefaultFailureBackoff
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	forced := make(map[string]bool, len(opts.Only))
	for _, id := range opts.Only {
		if id = strings.TrimSpace(id); id != "" {
			forced[id] = true
		}
	}

	return &Orchestrator{deps: deps, opts: opts, forced: forced, sleep: sleepCtx}, nil
}

// AssetKey is the storage key for an exercise image.
func (o *Orchestrator) AssetKey(id string) string {
	return id + o.opts.Ext
}

// PublicURL is the reference stamped into image_url.
func (o *Orchestrator) PublicURL(id string) string {
	return o.opts.URLPrefix + "/" + o.AssetKey(id)
}

// Run processes every record of the selected categories. Per-record failures are
// reported in the summary; the returned error is reserved for load, write-back and
// cancellation. Collections are rewritten only when at least one record was generated.
func (o *Orchestrator) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	log := logging.WithRunID(logging.CategoryPipeline, runID)
	timer := logging.StartTimer(logging.CategoryPipeline, "Orchestrator.Run")
	defer timer.StopWithInfo()

	summary := &Summary{RunID: runID, DryRun: o.opts.DryRun}

	entries, err := o.deps.Records.Load(ctx, o.opts.Category)
	if err != nil {
		return summary, err
	}
	log.Info("Loaded %d exercises (category=%q dry_run=%v force=%v only=%d concurrency=%d)",
		len(entries), o.opts.Category, o.opts.DryRun, o.opts.Force, len(o.forced), o.opts.Concurrency)

	known := exercise.Index(entries)
	for id := range o.forced {
		if _, ok := known[id]; !ok {
			log.Warn("Forced id %s is not in the working set", id)
		}
	}

	var limiter *rate.Limiter
	if o.opts.RateLimit > 0 && !o.opts.DryRun {
		limiter = rate.NewLimiter(rate.Limit(o.opts.RateLimit), 1)
	}

	outcomes := make([]Outcome, len(entries))
	for i, e := range entries {
		outcomes[i] = Outcome{ID: e.ID(), Category: e.Provenance.Category, State: StatePending}
	}

	var g errgroup.Group
	g.SetLimit(o.opts.Concurrency)
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = o.process(ctx, log, entries[i], limiter, runID)
			return nil
		})
	}
	_ = g.Wait()

	summary.tally(outcomes)
	o.record(summary)

	for _, re := range summary.Errors {
		log.Error("Record %s failed: %v", re.ID, re.Err)
	}
	log.Info("%s (healed %d)", summary, summary.Healed)

	if err := ctx.Err(); err != nil {
		log.Warn("Run interrupted, %d records not processed; collections left untouched", summary.Pending)
		return summary, fmt.Errorf("run interrupted: %w", err)
	}

	if o.opts.DryRun || summary.Generated == 0 {
		return summary, nil
	}

	written, err := o.deps.Records.WriteBack(ctx, entries)
	if err != nil {
		return summary, fmt.Errorf("write back collections: %w", err)
	}
	summary.Written = written
	for _, r := range written {
		log.Info("Saved %s (%d records)", r.Path, r.Records)
	}
	return summary, nil
}

// process drives one record through the state machine.
func (o *Orchestrator) process(ctx context.Context, log *logging.Logger, e *exercise.Entry, limiter *rate.Limiter, runID string) Outcome {
	id := e.ID()
	out := Outcome{ID: id, Category: e.Provenance.Category, State: StatePending}
	out.Forced = o.opts.Force || o.forced[id]
	key := o.AssetKey(id)
	url := o.PublicURL(id)

	if e.Record.HasImage() && !out.Forced {
		out.State = StateSkipped
		out.ImageURL = e.Record.ImageURL()
		return out
	}

	if !out.Forced && o.deps.Assets != nil {
		exists, err := o.deps.Assets.Exists(ctx, key)
		if err != nil {
			return o.fail(ctx, out, fmt.Errorf("check asset %s: %w", key, err))
		}
		if exists {
			if _, err := e.Record.SetImageURL(url); err != nil {
				return o.fail(ctx, out, err)
			}
			log.Debug("Re-linked existing asset %s", key)
			out.State = StateSkipped
			out.Healed = true
			out.ImageURL = url
			return out
		}
	}

	comp := o.deps.Compositor.Compose(e.Record)
	out.HintUsed = comp.HintUsed
	log.Info("[%s] %s", e.Provenance.Category, e.Record.DisplayName())

	if o.opts.DryRun {
		if _, err := e.Record.SetImageURL(url); err != nil {
			return o.fail(ctx, out, err)
		}
		out.State = StateGenerated
		out.Prompt = comp.Prompt
		out.ImageURL = url
		return out
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			out.Err = err
			out.State = StateFailed
			return out
		}
	}

	out.State = StateGenerating
	data, err := o.generate(ctx, comp.Prompt)
	if err != nil {
		return o.fail(ctx, out, err)
	}

	meta := map[string]string{
		core.MetaPromptSHA256: prompt.Fingerprint(comp.Prompt),
		core.MetaStyleVersion: o.deps.Compositor.Style().Version,
		core.MetaRunID:        runID,
	}
	if _, err := o.deps.Assets.Put(ctx, key, bytes.NewReader(data), core.PutOptions{
		ContentType: core.ContentTypeForKey(key),
		Metadata:    meta,
	}); err != nil {
		return o.fail(ctx, out, fmt.Errorf("store asset %s: %w", key, err))
	}
	if _, err := e.Record.SetImageURL(url); err != nil {
		return o.fail(ctx, out, err)
	}

	log.Info("  saved %s (%d KB)", key, len(data)/1024)
	out.State = StateGenerated
	out.ImageURL = url
	_ = o.sleep(ctx, o.opts.Delay)
	return out
}

func (o *Orchestrator) generate(ctx context.Context, text string) ([]byte, error) {
	callCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := o.deps.Generator.Generate(callCtx, text)
	o.deps.Metrics.ObserveGeneration(time.Since(start), len(data))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, imagegen.ErrEmptyPayload
	}
	return data, nil
}

// fail marks the outcome failed and observes the failure backoff.
func (o *Orchestrator) fail(ctx context.Context, out Outcome, err error) Outcome {
	out.State = StateFailed
	out.Err = err
	backoff := time.Duration(float64(o.opts.Delay) * o.opts.FailureBackoff)
	_ = o.sleep(ctx, backoff)
	return out
}

func (o *Orchestrator) record(s *Summary) {
	m := o.deps.Metrics
	if m == nil {
		return
	}
	for _, out := range s.Outcomes {
		switch {
		case out.State == StateGenerated:
			m.Record(string(out.Category), metrics.OutcomeGenerated)
		case out.Healed:
			m.Record(string(out.Category), metrics.OutcomeHealed)
		case out.State == StateSkipped:
			m.Record(string(out.Category), metrics.OutcomeSkipped)
		case out.State == StateFailed:
			m.Record(string(out.Category), metrics.OutcomeFailed)
		}
	}
	m.Finish(time.Now())
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
