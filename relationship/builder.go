// Package relationship assembles the per-extractor results produced by a
// run into a single read-only graph: it indexes every object, dedupes and
// flags edges, and computes the orphan set.
package relationship

import (
	"regexp"
	"strings"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/model"
)

// jbOrphanNamePattern matches a journey-builder-generated triggered send
// name's trailing UUID suffix.
var jbOrphanNamePattern = regexp.MustCompile(`-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// usageRule lists the object kinds whose reference keeps a kind's instances
// out of the orphan set.
type usageRule struct {
	kind         model.ObjectType
	referencedBy []model.ObjectType
}

// usageRules is the orphan rule table from the component design, extended
// with the asset rows the supplement adds to the core's listed set.
var usageRules = []usageRule{
	{model.TypeQuery, []model.ObjectType{model.TypeAutomation}},
	{model.TypeScript, []model.ObjectType{model.TypeAutomation}},
	{model.TypeImport, []model.ObjectType{model.TypeAutomation}},
	{model.TypeDataExtract, []model.ObjectType{model.TypeAutomation}},
	{model.TypeFileTransfer, []model.ObjectType{model.TypeAutomation}},
	{model.TypeFilter, []model.ObjectType{model.TypeAutomation, model.TypeJourney}},
	{model.TypeEventDefinition, []model.ObjectType{model.TypeJourney}},
	{model.TypeDataExtension, []model.ObjectType{
		model.TypeQuery, model.TypeJourney, model.TypeImport, model.TypeFilter,
		model.TypeEventDefinition, model.TypeTriggeredSend, model.TypeDataExtract,
		model.TypeAsset, model.TypeScript,
	}},
	{model.TypeEmail, []model.ObjectType{model.TypeAutomation, model.TypeJourney, model.TypeTriggeredSend, model.TypeAsset}},
	{model.TypeList, []model.ObjectType{model.TypeTriggeredSend, model.TypeJourney}},
	{model.TypeSenderProfile, []model.ObjectType{model.TypeSendClassification, model.TypeTriggeredSend}},
	{model.TypeDeliveryProfile, []model.ObjectType{model.TypeSendClassification, model.TypeTriggeredSend}},
	{model.TypeSendClassification, []model.ObjectType{model.TypeTriggeredSend}},
	{model.TypeAsset, []model.ObjectType{model.TypeAutomation, model.TypeJourney, model.TypeEmail}},
}

// Builder assembles a RelationshipGraph from the accumulated items and
// edges of a run. It holds no state between Build calls: one instance may
// be reused across runs, but each Build starts from its inputs alone.
type Builder struct {
	log logger.Logger
}

func New(log logger.Logger) *Builder {
	return &Builder{log: log.Child("relationship-builder")}
}

// Build indexes items, dedupes and flags edges against that index, and
// computes the orphan set per the usage rule table plus the journey-builder
// special case for triggered sends.
func (b *Builder) Build(items []model.Object, edges []model.RelationshipEdge) model.RelationshipGraph {
	index := make(map[model.ObjectKey]model.Object, len(items))
	for _, item := range items {
		index[item.Key()] = item
	}

	dedupedEdges := dedupeAndFlag(edges, index)

	referencedBy := referencingSets(dedupedEdges)
	orphans := computeOrphans(items, referencedBy)

	stats := buildStats(items, dedupedEdges, orphans)

	return model.RelationshipGraph{
		ObjectIndex: index,
		Edges:       dedupedEdges,
		Orphans:     orphans,
		Stats:       stats,
	}
}

type edgeKey struct {
	srcType, srcID string
	kind           string
	dstType, dstID string
}

func keyOf(e model.RelationshipEdge) edgeKey {
	return edgeKey{
		srcType: string(e.SourceType), srcID: e.SourceID,
		kind:    string(e.Kind),
		dstType: string(e.TargetType), dstID: e.TargetID,
	}
}

// dedupeAndFlag drops duplicate edges by the 5-tuple (srcType, srcId, kind,
// dstType, dstId), keeping the first occurrence, and marks dangling=true on
// any edge whose target is absent from the object index.
func dedupeAndFlag(edges []model.RelationshipEdge, index map[model.ObjectKey]model.Object) []model.RelationshipEdge {
	seen := make(map[edgeKey]bool, len(edges))
	out := make([]model.RelationshipEdge, 0, len(edges))
	for _, e := range edges {
		k := keyOf(e)
		if seen[k] {
			continue
		}
		seen[k] = true

		target := model.ObjectKey{Type: e.TargetType, ID: e.TargetID}
		if _, ok := index[target]; !ok {
			e.Dangling = true
		}
		out = append(out, e)
	}
	return out
}

// referencingSets maps each (type,id) to the set of source object kinds
// that reference it, used by computeOrphans.
func referencingSets(edges []model.RelationshipEdge) map[model.ObjectKey]map[model.ObjectType]bool {
	out := make(map[model.ObjectKey]map[model.ObjectType]bool)
	for _, e := range edges {
		target := model.ObjectKey{Type: e.TargetType, ID: e.TargetID}
		if out[target] == nil {
			out[target] = make(map[model.ObjectType]bool)
		}
		out[target][e.SourceType] = true
	}
	return out
}

func computeOrphans(items []model.Object, referencedBy map[model.ObjectKey]map[model.ObjectType]bool) []model.OrphanedObject {
	rulesByKind := make(map[model.ObjectType][]model.ObjectType, len(usageRules))
	for _, r := range usageRules {
		rulesByKind[r.kind] = r.referencedBy
	}

	var orphans []model.OrphanedObject
	for _, item := range items {
		if reason, isOrphan := jbOrphanReason(item); isOrphan {
			orphans = append(orphans, model.OrphanedObject{
				ID: item.ID, ObjectType: item.Type, Name: item.Name,
				FolderPath: item.FolderPath, Reason: reason,
			})
			continue
		}

		allowed, ruled := rulesByKind[item.Type]
		if !ruled {
			continue
		}

		referencers := referencedBy[item.Key()]
		used := false
		for _, kind := range allowed {
			if referencers[kind] {
				used = true
				break
			}
		}
		if !used {
			orphans = append(orphans, model.OrphanedObject{
				ID: item.ID, ObjectType: item.Type, Name: item.Name,
				FolderPath: item.FolderPath, Reason: "unreferenced",
			})
		}
	}
	return orphans
}

// jbOrphanReason applies the triggered-send-specific rule: deleted, filed
// under a journeybuilder folder, and named with a journey-generated UUID
// suffix. It takes precedence over the general usage-rule table for
// triggered sends.
func jbOrphanReason(item model.Object) (string, bool) {
	if item.Type != model.TypeTriggeredSend {
		return "", false
	}
	if !strings.Contains(strings.ToLower(item.FolderPath), "journeybuilder") {
		return "", false
	}
	if !strings.EqualFold(item.Status, "Deleted") {
		return "", false
	}
	if !jbOrphanNamePattern.MatchString(item.Name) {
		return "", false
	}
	return "jb_orphan", true
}

func buildStats(items []model.Object, edges []model.RelationshipEdge, orphans []model.OrphanedObject) model.GraphStats {
	stats := model.GraphStats{
		TotalNodes:         len(items),
		TotalEdges:         len(edges),
		OrphanedCount:      len(orphans),
		ByRelationshipType: make(map[string]int),
		BySourceType:       make(map[string]int),
		ByTargetType:       make(map[string]int),
	}
	for _, e := range edges {
		stats.ByRelationshipType[string(e.Kind)]++
		stats.BySourceType[string(e.SourceType)]++
		stats.ByTargetType[string(e.TargetType)]++
		if e.Dangling {
			stats.DanglingEdges++
		}
	}
	return stats
}
