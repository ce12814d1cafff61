package runner

import (
	"context"
	"testing"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/extract"
	"github.com/rudderlabs/sfmc-inventory/model"
)

// fakeExtractor produces one object of its own kind and no edges, with no
// cache requirements, so the runner tests exercise fan-out and aggregation
// without depending on any domain extractor.
type fakeExtractor struct {
	kind model.ObjectType
	fail bool
}

func (f *fakeExtractor) Type() model.ObjectType      { return f.kind }
func (f *fakeExtractor) RequiredCaches() []cache.Kind { return nil }

func (f *fakeExtractor) FetchData(ctx context.Context, opts extract.Options) ([]extract.RawItem, error) {
	if f.fail {
		return nil, context.Canceled
	}
	return []extract.RawItem{{"id": string(f.kind)}}, nil
}

func (f *fakeExtractor) EnrichData(ctx context.Context, items []extract.RawItem, opts extract.Options, errs *[]model.ExtractionError) ([]extract.RawItem, error) {
	return items, nil
}

func (f *fakeExtractor) TransformData(ctx context.Context, items []extract.RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	var objects []model.Object
	for _, item := range items {
		objects = append(objects, model.Object{ID: item["id"].(string), Type: f.kind})
	}
	return objects, nil, nil
}

func fakeBuilder(fail map[string]bool) Builder {
	return func(kind string, d extract.Deps) (extract.Extractor, error) {
		return &fakeExtractor{kind: model.ObjectType(kind), fail: fail[kind]}, nil
	}
}

func TestRun_AggregatesItemsAcrossKinds(t *testing.T) {
	deps := extract.Deps{Cache: cache.New(map[cache.Kind]cache.Loader{}, logger.NOP, stats.NOP), Log: logger.NOP}
	r := New(deps, fakeBuilder(nil), 2, time.Minute, stats.NOP, logger.NOP)

	result := r.Run(context.Background(), []string{"automation", "query", "email"}, extract.Options{})

	require.Len(t, result.Results, 3)
	require.Len(t, result.Items, 3)
	require.False(t, result.HasPartial())
}

func TestRun_OneFailingKindDoesNotAbortSiblings(t *testing.T) {
	deps := extract.Deps{Cache: cache.New(map[cache.Kind]cache.Loader{}, logger.NOP, stats.NOP), Log: logger.NOP}
	r := New(deps, fakeBuilder(map[string]bool{"query": true}), 2, time.Minute, stats.NOP, logger.NOP)

	result := r.Run(context.Background(), []string{"automation", "query"}, extract.Options{})

	require.Len(t, result.Results, 2)
	require.True(t, result.HasPartial())

	var gotAutomation bool
	for _, item := range result.Items {
		if item.Type == model.ObjectType("automation") {
			gotAutomation = true
		}
	}
	require.True(t, gotAutomation)
}

func TestRunSequential_RunsOneAtATime(t *testing.T) {
	deps := extract.Deps{Cache: cache.New(map[cache.Kind]cache.Loader{}, logger.NOP, stats.NOP), Log: logger.NOP}
	r := New(deps, fakeBuilder(nil), 4, time.Minute, stats.NOP, logger.NOP)

	result := r.RunSequential(context.Background(), []string{"automation", "query"}, extract.Options{})
	require.Len(t, result.Items, 2)
}

// slowExtractor blocks in FetchData until either its own deadline or an
// outside cancellation fires, so tests can distinguish a per-kind timeout
// from every other kind in the same run.
type slowExtractor struct {
	kind model.ObjectType
}

func (s *slowExtractor) Type() model.ObjectType      { return s.kind }
func (s *slowExtractor) RequiredCaches() []cache.Kind { return nil }

func (s *slowExtractor) FetchData(ctx context.Context, opts extract.Options) ([]extract.RawItem, error) {
	select {
	case <-time.After(time.Second):
		return []extract.RawItem{{"id": string(s.kind)}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *slowExtractor) EnrichData(ctx context.Context, items []extract.RawItem, opts extract.Options, errs *[]model.ExtractionError) ([]extract.RawItem, error) {
	return items, nil
}

func (s *slowExtractor) TransformData(ctx context.Context, items []extract.RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	return nil, nil, nil
}

func TestRun_PerKindTimeoutDoesNotAbortSiblings(t *testing.T) {
	deps := extract.Deps{Cache: cache.New(map[cache.Kind]cache.Loader{}, logger.NOP, stats.NOP), Log: logger.NOP}
	builder := func(kind string, d extract.Deps) (extract.Extractor, error) {
		if kind == "slow" {
			return &slowExtractor{kind: model.ObjectType(kind)}, nil
		}
		return &fakeExtractor{kind: model.ObjectType(kind)}, nil
	}
	r := New(deps, builder, 2, 20*time.Millisecond, stats.NOP, logger.NOP)

	result := r.Run(context.Background(), []string{"automation", "slow"}, extract.Options{})
	require.True(t, result.HasPartial())

	var gotAutomation bool
	var slowResult *model.ExtractorResult
	for _, res := range result.Results {
		if res.Kind == "automation" {
			gotAutomation = true
		}
		if res.Kind == "slow" {
			slowResult = res.Result
		}
	}
	require.True(t, gotAutomation, "the fast sibling must complete despite the slow kind timing out")
	require.NotNil(t, slowResult)
	require.Equal(t, model.StatusPartial, slowResult.Status)
	require.Len(t, slowResult.Errors, 1)
	require.Equal(t, "EXTRACTOR_TIMEOUT", slowResult.Errors[0].Code)
}

func TestBuild_UnknownKindAbortsOnlyThatResult(t *testing.T) {
	deps := extract.Deps{Cache: cache.New(map[cache.Kind]cache.Loader{}, logger.NOP, stats.NOP), Log: logger.NOP}
	builder := func(kind string, d extract.Deps) (extract.Extractor, error) {
		if kind == "bogus" {
			return nil, context.DeadlineExceeded
		}
		return &fakeExtractor{kind: model.ObjectType(kind)}, nil
	}
	r := New(deps, builder, 2, time.Minute, stats.NOP, logger.NOP)

	result := r.Run(context.Background(), []string{"automation", "bogus"}, extract.Options{})
	require.True(t, result.HasPartial())
	require.Len(t, result.Items, 1)
}
