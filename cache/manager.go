// Package cache implements the lazy, thread-safe registry of reference
// tables (folder hierarchies, definition lookups) every extractor warms
// before it runs, plus the breadcrumb resolver built on top of it.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"golang.org/x/sync/errgroup"

	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

// Kind enumerates the cacheable reference tables. Folder caches back
// breadcrumb resolution; definition caches resolve cross-references by id
// without a round trip per reference.
type Kind string

const (
	KindAutomationFolders  Kind = "automation_folders"
	KindEmailFolders       Kind = "email_folders"
	KindTemplateFolders    Kind = "template_folders"
	KindTriggeredSendFolders Kind = "triggered_send_folders"
	KindListFolders        Kind = "list_folders"
	KindJourneyFolders     Kind = "journey_folders"
	KindDEFolders          Kind = "de_folders"
	KindQueryFolders       Kind = "query_folders"
	KindScriptFolders      Kind = "script_folders"
	KindImportFolders      Kind = "import_folders"
	KindDataExtractFolders Kind = "dataextract_folders"
	KindFileTransferFolders Kind = "filetransfer_folders"
	KindFilterFolders      Kind = "filter_folders"
	KindContentCategories  Kind = "content_categories"
	KindQueries            Kind = "queries"
	KindScripts            Kind = "scripts"
	KindEmails             Kind = "emails"
)

// Loader populates the value for a single cache kind. It is called at most
// once per kind per run.
type Loader func(ctx context.Context) (interface{}, error)

type entry struct {
	once     sync.Once
	value    interface{}
	err      error
	loadedAt time.Time
	duration time.Duration
}

// Stats describes what was observed loading one cache kind.
type Stats struct {
	LoadDuration        time.Duration
	EntryCount          int
	UnresolvedReferences int
}

// Manager is the registry keyed by Kind. It is safe for concurrent use: the
// first caller to request a given kind performs the load under that kind's
// one-shot guard; concurrent callers of that kind wait until the load ends,
// and every later caller observes the published value without taking a lock.
type Manager struct {
	loaders map[Kind]Loader
	entries map[Kind]*entry

	mu          sync.Mutex
	stats       map[Kind]Stats
	breadcrumbs map[Kind]*BreadcrumbBuilder

	log     logger.Logger
	metrics stats.Stats
}

func New(loaders map[Kind]Loader, log logger.Logger, metrics stats.Stats) *Manager {
	entries := make(map[Kind]*entry, len(loaders))
	for k := range loaders {
		entries[k] = &entry{}
	}
	return &Manager{
		loaders: loaders,
		entries: entries,
		stats:   make(map[Kind]Stats),
		log:     log.Child("cache-manager"),
		metrics: metrics,
	}
}

// Get lazily loads (on first call) and returns the value for kind.
func (m *Manager) Get(ctx context.Context, kind Kind) (interface{}, error) {
	e, ok := m.entries[kind]
	if !ok {
		return nil, sfmcerr.New(sfmcerr.CacheLoadFailed, "unknown cache kind: "+string(kind), nil)
	}

	e.once.Do(func() {
		start := time.Now()
		loader, ok := m.loaders[kind]
		if !ok {
			e.err = sfmcerr.New(sfmcerr.CacheLoadFailed, "no loader registered for "+string(kind), nil)
			return
		}
		v, err := loader(ctx)
		e.duration = time.Since(start)
		e.loadedAt = time.Now()
		if err != nil {
			e.err = sfmcerr.New(sfmcerr.CacheLoadFailed, "loading "+string(kind), err)
			return
		}
		e.value = v
		m.recordStats(kind, e)
	})

	if e.err != nil {
		return nil, e.err
	}
	return e.value, nil
}

func (m *Manager) recordStats(kind Kind, e *entry) {
	count := entryCount(e.value)
	m.mu.Lock()
	m.stats[kind] = Stats{LoadDuration: e.duration, EntryCount: count}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.NewTaggedStat("sfmc_cache_load_duration_ms", stats.GaugeType, stats.Tags{"kind": string(kind)}).
			Gauge(float64(e.duration.Milliseconds()))
		m.metrics.NewTaggedStat("sfmc_cache_entry_count", stats.GaugeType, stats.Tags{"kind": string(kind)}).
			Gauge(float64(count))
	}
	m.log.Infow("cache loaded", "kind", kind, "entries", count, "durationMs", e.duration.Milliseconds())
}

func entryCount(v interface{}) int {
	switch m := v.(type) {
	case map[string]FolderRef:
		return len(m)
	case map[string]interface{}:
		return len(m)
	default:
		return 0
	}
}

// Warm preloads every kind in kinds in parallel, using errgroup so that the
// first load failure is returned once every load has finished; a failing
// load does not cancel the other loads.
func (m *Manager) Warm(ctx context.Context, kinds []Kind) error {
	var g errgroup.Group
	for _, k := range kinds {
		kind := k
		g.Go(func() error {
			_, err := m.Get(ctx, kind)
			return err
		})
	}
	return g.Wait()
}

// StatsFor returns the observed load statistics for kind, or the zero value
// if it has not been loaded.
func (m *Manager) StatsFor(kind Kind) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[kind]
}

// AllStats returns a snapshot of every recorded cache kind's statistics, for
// statistics.json.
func (m *Manager) AllStats() map[Kind]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Kind]Stats, len(m.stats))
	for k, v := range m.stats {
		out[k] = v
	}
	return out
}

// GetFolders is a typed convenience wrapper around Get for folder-map
// kinds, used by the breadcrumb builder wiring.
func (m *Manager) GetFolders(ctx context.Context, kind Kind) (map[string]FolderRef, error) {
	v, err := m.Get(ctx, kind)
	if err != nil {
		return nil, err
	}
	folders, ok := v.(map[string]FolderRef)
	if !ok {
		return nil, sfmcerr.New(sfmcerr.CacheLoadFailed, string(kind)+" did not load a folder map", nil)
	}
	return folders, nil
}

// BreadcrumbFor builds (and memoizes, per kind) a breadcrumb resolver over
// the folder map loaded for kind, then resolves folderID through it.
func (m *Manager) BreadcrumbFor(ctx context.Context, kind Kind, folderID string) (Breadcrumb, error) {
	folders, err := m.GetFolders(ctx, kind)
	if err != nil {
		return Breadcrumb{}, err
	}

	m.mu.Lock()
	if m.breadcrumbs == nil {
		m.breadcrumbs = make(map[Kind]*BreadcrumbBuilder)
	}
	builder, ok := m.breadcrumbs[kind]
	if !ok {
		builder = NewBreadcrumbBuilder(folders, "")
		m.breadcrumbs[kind] = builder
	}
	m.mu.Unlock()

	return builder.Resolve(folderID), nil
}
