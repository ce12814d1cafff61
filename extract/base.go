// Package extract implements the base extractor template and every domain
// extractor built on top of it.
package extract

import (
	"context"
	"errors"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

// RawItem is a loosely typed record as returned by either transport, before
// enrichment and normalization into model.Object. Both the REST JSON
// surface and the SOAP XML-to-map surface are normalized into this shape by
// each extractor's FetchData.
type RawItem map[string]interface{}

// ProgressFunc reports (done, total, label) at monotonic intervals while an
// extractor runs.
type ProgressFunc func(done, total int, label string)

// Options bundles the per-run knobs an extractor's pipeline stages consult.
type Options struct {
	IncludeDetails        bool
	IncludeContent        bool
	MaxDetailConcurrency  int
	PageSize              int
	Progress              ProgressFunc
}

func (o Options) detailConcurrency() int {
	if o.MaxDetailConcurrency <= 0 {
		return 8
	}
	return o.MaxDetailConcurrency
}

func (o Options) report(done, total int, label string) {
	if o.Progress != nil {
		o.Progress(done, total, label)
	}
}

// Extractor is the template every domain extractor implements. The Runner
// invokes the three stages in order through RunExtractor; it never calls
// them directly.
type Extractor interface {
	Type() model.ObjectType
	RequiredCaches() []cache.Kind

	// FetchData performs the paginated pull of raw records for this object
	// type. If it returns a non-nil error, whatever items were already
	// accumulated are still returned alongside it so the caller can surface
	// a partial result rather than discarding completed work.
	FetchData(ctx context.Context, opts Options) ([]RawItem, error)

	// EnrichData attaches breadcrumbs, resolves referenced names from
	// caches, and fetches per-item detail with bounded parallelism. Item-
	// level failures are appended to errs rather than returned, so a single
	// bad item never aborts enrichment for the rest.
	EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error)

	// TransformData normalizes raw records into Objects and emits the
	// typed relationship edges they imply.
	TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error)
}

// RunExtractor drives the fetch -> enrich -> transform pipeline for a single
// extractor, collecting per-item errors without aborting, and translating a
// fatal transport/auth/cancellation error into the appropriate Status.
func RunExtractor(ctx context.Context, ext Extractor, opts Options, log logger.Logger) *model.ExtractorResult {
	result := model.NewExtractorResult(ext.Type())
	result.Started = time.Now()
	defer func() { result.Finished = time.Now() }()

	opts.report(0, 0, "fetching "+string(ext.Type()))
	raw, fetchErr := ext.FetchData(ctx, opts)
	if fetchErr != nil {
		result.AddError(toExtractionError(fetchErr))
		result.Status = statusFor(fetchErr)
		if result.Status == model.StatusAborted || (result.Status == model.StatusPartial && len(raw) == 0) {
			return result
		}
	}

	var itemErrs []model.ExtractionError
	opts.report(0, len(raw), "enriching "+string(ext.Type()))
	enriched, enrichErr := ext.EnrichData(ctx, raw, opts, &itemErrs)
	result.Errors = append(result.Errors, itemErrs...)
	if enrichErr != nil {
		result.AddError(toExtractionError(enrichErr))
		result.Status = statusFor(enrichErr)
		if result.Status == model.StatusAborted {
			return result
		}
	}

	opts.report(len(enriched), len(enriched), "transforming "+string(ext.Type()))
	items, edges, transformErr := ext.TransformData(ctx, enriched)
	if transformErr != nil {
		result.AddError(toExtractionError(transformErr))
		if result.Status == model.StatusOK {
			result.Status = statusFor(transformErr)
		}
	}

	result.Items = items
	result.Edges = edges

	if cr, ok := ext.(CounterReporter); ok {
		for name, delta := range cr.Counters() {
			result.IncrCounter(name, delta)
		}
	}

	return result
}

// CounterReporter is implemented by extractors that track counters beyond
// the item/error/edge counts RunExtractor derives on its own — currently
// the unresolved-static-reference counters on the script and query
// extractors. RunExtractor merges them into the result after TransformData.
type CounterReporter interface {
	Counters() map[string]int
}

// statusFor classifies a stage error into the result-level status. A
// cancellation aborts the whole extractor regardless of what was
// accumulated before it fired; any other stage error is a PARTIAL result,
// whether or not the stage recovered any items itself, because RunExtractor
// decides separately (by inspecting the accumulated slice at each call site)
// whether a PARTIAL with zero items is worth returning early or not.
func statusFor(err error) model.ExtractorStatus {
	if errors.Is(err, context.Canceled) {
		return model.StatusAborted
	}
	if code, ok := sfmcerr.CodeOf(err); ok && code == sfmcerr.Canceled {
		return model.StatusAborted
	}
	return model.StatusPartial
}

func toExtractionError(err error) model.ExtractionError {
	code := "UNKNOWN"
	if c, ok := sfmcerr.CodeOf(err); ok {
		code = string(c)
	} else if errors.Is(err, context.DeadlineExceeded) {
		// A bare stdlib deadline error (an extractor's own ctx.Done() branch,
		// not wrapped through sfmcerr by a transport) still gets classified.
		code = string(sfmcerr.ExtractorTimeout)
	}
	return model.ExtractionError{Code: code, Message: err.Error()}
}
