// Package engine wires every component this module builds into a single
// runnable pipeline: token manager, transports, rate limiter, cache
// manager, extractor runner, relationship builder, and snapshot writer.
package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"

	"github.com/rudderlabs/sfmc-inventory/auth"
	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/config"
	"github.com/rudderlabs/sfmc-inventory/extract"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/ratelimiter"
	"github.com/rudderlabs/sfmc-inventory/relationship"
	"github.com/rudderlabs/sfmc-inventory/restclient"
	"github.com/rudderlabs/sfmc-inventory/runner"
	"github.com/rudderlabs/sfmc-inventory/snapshot"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

// Result is what a completed run hands back to its caller: where the
// snapshot landed and whether any extractor in the run ended short of OK.
type Result struct {
	RunID      string
	OutputDir  string
	HasPartial bool
	Started    time.Time
	Finished   time.Time
}

// Engine owns every long-lived component a run needs and can be reused
// across runs. Run changes the state of what it holds: the cache manager's
// one-shot entries (a second run reuses them, so a clean cache takes a new
// Engine from New), the rate limiter's per-kind delays and the token
// manager's cached token.
type Engine struct {
	cfg     config.Config
	tokens  *auth.TokenManager
	rest    *restclient.Client
	soap    *soapclient.Client
	limiter *ratelimiter.Limiter
	caches  *cache.Manager
	runner  *runner.Runner
	rel     *relationship.Builder
	writer  *snapshot.Writer
	log     logger.Logger
}

// New validates cfg and constructs every component beneath the engine. It
// performs no network calls; the OAuth2 exchange happens lazily on the
// first extractor's first request.
func New(cfg config.Config, log logger.Logger) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = log.Child("engine")
	metrics := stats.Default

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	tokens := auth.NewTokenManager(cfg.AuthBase, cfg.ClientID, cfg.ClientSecret, cfg.AccountID, httpClient, log)

	rest := restclient.New(cfg.RESTBase, tokens, cfg.RequestTimeout, log)
	soap := soapclient.New(cfg.SOAPBase, tokens, cfg.RequestTimeout, log)

	limiter := ratelimiter.New(cfg.MaxConcurrency, log, metrics)

	caches := cache.New(cache.BuildLoaders(soap, rest), log, metrics)

	deps := extract.Deps{REST: rest, SOAP: soap, Cache: caches, Limiter: limiter, Log: log}
	run := runner.New(deps, extract.Build, cfg.MaxConcurrency, cfg.ExtractorTimeout, metrics, log)

	return &Engine{
		cfg:     cfg,
		tokens:  tokens,
		rest:    rest,
		soap:    soap,
		limiter: limiter,
		caches:  caches,
		runner:  run,
		rel:     relationship.New(log),
		writer:  snapshot.New(cfg.OutputRoot, log),
		log:     log,
	}, nil
}

// Kinds resolves the engine's configured preset or explicit kind list into
// the concrete extractor kinds a run will execute.
func (e *Engine) Kinds() []string {
	if e.cfg.Preset != "" {
		if kinds := config.PresetKinds(e.cfg.Preset); kinds != nil {
			return kinds
		}
	}
	if len(e.cfg.Kinds) > 0 {
		return e.cfg.Kinds
	}
	return extract.AllKinds()
}

// Run drives the full pipeline once: runs every configured extractor kind
// under bounded concurrency, assembles the relationship graph over the
// combined output, and writes the snapshot. ctx governs the run as a whole
// (caller cancellation aborts every kind); each extractor kind additionally
// gets its own per-kind deadline from the configured extractor timeout, so a
// single slow extractor times out on its own without touching its siblings.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	kinds := e.Kinds()
	opts := extract.Options{
		IncludeDetails: e.cfg.IncludeDetails,
		IncludeContent: e.cfg.IncludeContent,
		PageSize:       e.cfg.PageSize,
	}

	rr := e.runner.Run(ctx, kinds, opts)

	graph := e.rel.Build(rr.Items, rr.Edges)

	itemsByType := make(map[model.ObjectType][]model.Object)
	for _, item := range rr.Items {
		itemsByType[item.Type] = append(itemsByType[item.Type], item)
	}

	extractorStats := make(map[string]snapshot.ExtractorStats, len(rr.Results))
	for _, res := range rr.Results {
		if res.Result == nil {
			continue
		}
		r := res.Result
		extractorStats[res.Kind] = snapshot.ExtractorStats{
			Status:     r.Status,
			ItemCount:  len(r.Items),
			ErrorCount: len(r.Errors),
			EdgeCount:  len(r.Edges),
			Counters:   r.Counters,
			DurationMs: r.Finished.Sub(r.Started).Milliseconds(),
		}
	}

	dir, err := e.writer.Write(snapshot.Input{
		RunID:       rr.RunID,
		GeneratedAt: rr.StartedAt,
		Options: map[string]interface{}{
			"includeDetails": e.cfg.IncludeDetails,
			"includeContent": e.cfg.IncludeContent,
			"pageSize":       e.cfg.PageSize,
			"preset":         string(e.cfg.Preset),
		},
		ExtractorKinds: kinds,
		DurationMs:     rr.Finished.Sub(rr.StartedAt).Milliseconds(),
		ExtractorStats: extractorStats,
		CacheStats:     e.caches.AllStats(),
		ItemsByType:    itemsByType,
		Graph:          graph,
	})
	if err != nil {
		return Result{RunID: rr.RunID, HasPartial: true, Started: rr.StartedAt, Finished: rr.Finished}, err
	}

	return Result{
		RunID:      rr.RunID,
		OutputDir:  dir,
		HasPartial: rr.HasPartial(),
		Started:    rr.StartedAt,
		Finished:   rr.Finished,
	}, nil
}
