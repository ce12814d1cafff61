// Package snapshot writes a completed run's objects, relationship graph,
// and statistics to a timestamped directory, one file at a time, with each
// file published atomically via a temp-file-then-rename.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

const manifestVersion = 1

// Manifest is the top-level summary of a run, manifest.json's contents.
type Manifest struct {
	Version        int               `json:"version"`
	RunID          string            `json:"runId"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	Options        map[string]interface{} `json:"options"`
	ExtractorKinds []string          `json:"extractorKinds"`
	Counts         map[string]int    `json:"counts"`
	DurationMs     int64             `json:"durationMs"`
}

// Statistics is statistics.json's contents.
type Statistics struct {
	Extractors map[string]ExtractorStats `json:"extractors"`
	Caches     map[string]cache.Stats    `json:"caches"`
	Graph      model.GraphStats          `json:"graph"`
}

// ExtractorStats is the per-extractor slice of statistics.json.
type ExtractorStats struct {
	Status     model.ExtractorStatus `json:"status"`
	ItemCount  int                   `json:"itemCount"`
	ErrorCount int                   `json:"errorCount"`
	EdgeCount  int                   `json:"edgeCount"`
	Counters   map[string]int        `json:"counters"`
	DurationMs int64                 `json:"durationMs"`
}

// Writer writes a run's output to outputRoot/inventory_<timestamp>/.
type Writer struct {
	outputRoot string
	log        logger.Logger
}

func New(outputRoot string, log logger.Logger) *Writer {
	return &Writer{outputRoot: outputRoot, log: log.Child("snapshot-writer")}
}

// Input bundles everything the writer needs that isn't already owned by
// another component's result type.
type Input struct {
	RunID          string
	GeneratedAt    time.Time
	Options        map[string]interface{}
	ExtractorKinds []string
	DurationMs     int64
	ExtractorStats map[string]ExtractorStats
	CacheStats     map[cache.Kind]cache.Stats
	ItemsByType    map[model.ObjectType][]model.Object
	Graph          model.RelationshipGraph
}

// Write creates the timestamped directory and writes every file into it,
// returning the directory path on success. Directory naming is always
// inventory_<YYYYMMDD>_<HHMMSS>, with no account-id suffix.
func (w *Writer) Write(in Input) (string, error) {
	dirName := fmt.Sprintf("inventory_%s", in.GeneratedAt.Format("20060102_150405"))
	dir := filepath.Join(w.outputRoot, dirName)

	if err := os.MkdirAll(filepath.Join(dir, "objects"), 0o755); err != nil {
		return "", wrapWrite("creating objects directory", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "relationships"), 0o755); err != nil {
		return "", wrapWrite("creating relationships directory", err)
	}

	counts := make(map[string]int, len(in.ItemsByType))
	for typ, items := range in.ItemsByType {
		counts[string(typ)] = len(items)
		if err := writeNDJSON(filepath.Join(dir, "objects", string(typ)+".ndjson"), items); err != nil {
			return "", wrapWrite("writing objects/"+string(typ)+".ndjson", err)
		}
	}

	manifest := Manifest{
		Version:        manifestVersion,
		RunID:          in.RunID,
		GeneratedAt:    in.GeneratedAt,
		Options:        in.Options,
		ExtractorKinds: in.ExtractorKinds,
		Counts:         counts,
		DurationMs:     in.DurationMs,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return "", wrapWrite("writing manifest.json", err)
	}

	stats := Statistics{
		Extractors: in.ExtractorStats,
		Caches:     stringKeyedCacheStats(in.CacheStats),
		Graph:      in.Graph.Stats,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "statistics.json"), stats); err != nil {
		return "", wrapWrite("writing statistics.json", err)
	}

	graphDoc := struct {
		Edges []model.RelationshipEdge        `json:"edges"`
		Index map[string]model.Object         `json:"index"`
	}{
		Edges: in.Graph.Edges,
		Index: stringKeyedIndex(in.Graph.ObjectIndex),
	}
	if err := writeJSONAtomic(filepath.Join(dir, "relationships", "graph.json"), graphDoc); err != nil {
		return "", wrapWrite("writing relationships/graph.json", err)
	}

	orphansDoc := groupOrphansByType(in.Graph.Orphans)
	if err := writeJSONAtomic(filepath.Join(dir, "relationships", "orphans.json"), orphansDoc); err != nil {
		return "", wrapWrite("writing relationships/orphans.json", err)
	}

	return dir, nil
}

func stringKeyedCacheStats(in map[cache.Kind]cache.Stats) map[string]cache.Stats {
	out := make(map[string]cache.Stats, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

func stringKeyedIndex(index map[model.ObjectKey]model.Object) map[string]model.Object {
	out := make(map[string]model.Object, len(index))
	for k, v := range index {
		out[string(k.Type)+":"+k.ID] = v
	}
	return out
}

// groupOrphansByType emits orphans.json's documented external contract: a
// bare map from type to the list of orphaned ids, {type: [ids]} — not the
// richer model.OrphanedObject records that name/folderPath/reason live in,
// which belong to the in-memory graph, not the file on disk.
func groupOrphansByType(orphans []model.OrphanedObject) map[string][]string {
	out := make(map[string][]string)
	for _, o := range orphans {
		out[string(o.ObjectType)] = append(out[string(o.ObjectType)], o.ID)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// writeNDJSON streams one JSON object per line to path via a temp file,
// renamed into place only once every record is flushed, so a reader never
// observes a truncated tail.
func writeNDJSON(path string, items []model.Object) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(f)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := bw.Write(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeJSONAtomic(path string, v interface{}) error {
	tmp := path + ".tmp"
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func wrapWrite(context string, err error) error {
	return sfmcerr.New(sfmcerr.WriteFailed, context, err)
}
