package extract

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// ssjsDEPattern matches the SSJS core-function calls that take a data
// extension name as their first argument: DataExtension.Init and the
// Platform.Function row-access family.
var ssjsDEPattern = regexp.MustCompile(`(?i)(?:DataExtension\.Init|Platform\.Function\.(?:LookupRows?|UpsertData|InsertData|UpdateData))\s*\(\s*["']([^"']+)["']`)

// extractSSJSDEReferences scans script source for data extension names
// passed to the SSJS core functions. Like the SQL scan the query extractor
// runs, this never resolves to an id, only a name.
func extractSSJSDEReferences(script string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range ssjsDEPattern.FindAllStringSubmatch(script, -1) {
		name := m[1]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// ScriptExtractor lists SSJS script activities over REST. It emits one
// script_uses_de edge for each data extension name found in a script's body.
type ScriptExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger

	unresolved int
}

func NewScriptExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *ScriptExtractor {
	return &ScriptExtractor{rest: rest, cache: c, log: log.Child("script")}
}

func (e *ScriptExtractor) Type() model.ObjectType { return model.TypeScript }

func (e *ScriptExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindScriptFolders}
}

func (e *ScriptExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/automation/v1/scripts", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *ScriptExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindScriptFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		if body, ok := item["script"].(string); ok {
			item["referencedDataExtensions"] = extractSSJSDEReferences(body)
		}
		if !opts.IncludeContent {
			delete(item, "script")
		}
		items[i] = item
	}
	return items, nil
}

func (e *ScriptExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["ssjsActivityId"])
		name := fmt.Sprint(item["name"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeScript,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        name,
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description": item["description"],
				"script":      item["script"],
			},
		})

		refs, _ := item["referencedDataExtensions"].([]string)
		for _, deName := range refs {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeScript, SourceName: name,
				TargetID: deName, TargetType: model.TypeDataExtension, TargetName: deName,
				Kind:     model.ScriptUsesDE,
				Metadata: map[string]interface{}{"resolvedByName": true},
			})
			e.unresolved++
		}
	}

	return objects, edges, nil
}

// Counters reports the unresolved SSJS-reference count accumulated during
// TransformData, merged into the extractor result by RunExtractor.
func (e *ScriptExtractor) Counters() map[string]int {
	return map[string]int{"unresolvedReferences": e.unresolved}
}
