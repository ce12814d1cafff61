// Package runner orchestrates a selected set of extractors with bounded
// parallelism and aggregates their results for the relationship builder
// and snapshot writer.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"golang.org/x/sync/errgroup"

	"github.com/rudderlabs/sfmc-inventory/extract"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

// Result is one extractor's outcome plus the wall-clock it took, keyed by
// kind for the caller's convenience.
type Result struct {
	Kind     string
	Result   *model.ExtractorResult
}

// RunnerResult aggregates every requested extractor's outcome for a single
// run, ready to hand off to the relationship builder and snapshot writer.
type RunnerResult struct {
	RunID     string
	Results   []Result
	Items     []model.Object
	Edges     []model.RelationshipEdge
	StartedAt time.Time
	Finished  time.Time
}

// HasPartial reports whether any extractor in the run ended PARTIAL or
// ABORTED, the signal the CLI collaborator uses to choose exit code 4.
func (r RunnerResult) HasPartial() bool {
	for _, res := range r.Results {
		if res.Result.Status != model.StatusOK {
			return true
		}
	}
	return false
}

// Builder constructs the Extractor for a kind; extract.Build satisfies it.
type Builder func(kind string, deps extract.Deps) (extract.Extractor, error)

// Runner drives a set of extractor kinds to completion, warming each one's
// declared caches first and bounding how many extractor kinds run at once
// with a global semaphore. Each extractor bounds its own per-item detail
// fetches independently.
type Runner struct {
	deps             extract.Deps
	build            Builder
	maxConcurrency   int
	extractorTimeout time.Duration
	metrics          stats.Stats
	log              logger.Logger
}

// New builds a Runner. extractorTimeout, if positive, bounds each extractor
// kind's own goroutine independently — one slow kind timing out never
// touches its siblings' deadlines, unlike a single shared context covering
// the whole fan-out would.
func New(deps extract.Deps, build Builder, maxConcurrency int, extractorTimeout time.Duration, metrics stats.Stats, log logger.Logger) *Runner {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Runner{
		deps:             deps,
		build:            build,
		maxConcurrency:   maxConcurrency,
		extractorTimeout: extractorTimeout,
		metrics:          metrics,
		log:              log.Child("runner"),
	}
}

// Run runs every kind in kinds concurrently under the global semaphore. A
// single extractor's fatal error never aborts its siblings; ctx
// cancellation propagates to every in-flight extractor, which surfaces as
// an ABORTED status on whatever did not finish.
func (r *Runner) Run(ctx context.Context, kinds []string, opts extract.Options) RunnerResult {
	return r.run(ctx, kinds, opts, r.maxConcurrency)
}

// RunSequential runs kinds one at a time, used when the caller has
// observed high rate-limiter stress or explicitly requests serialized
// extraction.
func (r *Runner) RunSequential(ctx context.Context, kinds []string, opts extract.Options) RunnerResult {
	return r.run(ctx, kinds, opts, 1)
}

func (r *Runner) run(ctx context.Context, kinds []string, opts extract.Options, concurrency int) RunnerResult {
	out := RunnerResult{RunID: uuid.NewString(), StartedAt: time.Now()}
	defer func() { out.Finished = time.Now() }()

	results := make([]Result, len(kinds))
	sem := make(chan struct{}, concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, kind := range kinds {
		i, kind := i, kind
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = Result{Kind: kind, Result: abortedResult(kind)}
			continue
		}
		g.Go(func() error {
			defer func() { <-sem }()
			results[i] = Result{Kind: kind, Result: r.runOne(gctx, kind, opts)}
			return nil
		})
	}
	_ = g.Wait()

	out.Results = results
	for _, res := range results {
		if res.Result == nil {
			continue
		}
		out.Items = append(out.Items, res.Result.Items...)
		out.Edges = append(out.Edges, res.Result.Edges...)
	}

	r.recordOutcomes(results)
	return out
}

// runOne runs a single extractor kind to completion. When the runner was
// built with a positive extractorTimeout, that deadline is scoped to this
// kind's own context: it fires independently of every other in-flight kind,
// surfacing EXTRACTOR_TIMEOUT on this result alone rather than cancelling
// the whole fan-out the way a single context shared across every kind would.
func (r *Runner) runOne(ctx context.Context, kind string, opts extract.Options) *model.ExtractorResult {
	if r.extractorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.extractorTimeout)
		defer cancel()
	}

	ext, err := r.build(kind, r.deps)
	if err != nil {
		res := model.NewExtractorResult(model.ObjectType(kind))
		res.Status = model.StatusAborted
		res.AddError(model.ExtractionError{Code: "UNKNOWN", Message: err.Error()})
		return res
	}

	if caches := ext.RequiredCaches(); len(caches) > 0 {
		if err := r.deps.Cache.Warm(ctx, caches); err != nil {
			res := model.NewExtractorResult(ext.Type())
			res.Status = model.StatusAborted
			res.AddError(model.ExtractionError{Code: string(cacheErrCode(err)), Message: err.Error()})
			return res
		}
	}

	res := extract.RunExtractor(ctx, ext, opts, r.log)

	// Belt-and-suspenders: if this kind's own deadline fired but nothing in
	// the pipeline happened to touch ctx on its way out (e.g. TransformData
	// runs purely in-memory), still surface the timeout rather than report a
	// clean OK for a kind that in fact ran out of time.
	if res.Status == model.StatusOK && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Status = model.StatusPartial
		res.AddError(model.ExtractionError{
			Code:    string(sfmcerr.ExtractorTimeout),
			Message: fmt.Sprintf("extractor %s exceeded its timeout", kind),
		})
	}

	return res
}

func cacheErrCode(err error) string {
	if code, ok := sfmcerr.CodeOf(err); ok {
		return string(code)
	}
	return string(sfmcerr.CacheLoadFailed)
}

func abortedResult(kind string) *model.ExtractorResult {
	res := model.NewExtractorResult(model.ObjectType(kind))
	res.Status = model.StatusAborted
	res.AddError(model.ExtractionError{Code: "CANCELED", Message: "run canceled before extractor started"})
	return res
}

func (r *Runner) recordOutcomes(results []Result) {
	if r.metrics == nil {
		return
	}
	for _, res := range results {
		if res.Result == nil {
			continue
		}
		r.metrics.NewTaggedStat("sfmc_extractor_outcome", stats.CountType, stats.Tags{
			"kind": res.Kind, "status": string(res.Result.Status),
		}).Increment()
	}
}
