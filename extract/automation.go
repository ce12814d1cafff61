package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
	"github.com/rudderlabs/sfmc-inventory/sfmcerr"
)

// AutomationExtractor pulls automation definitions, their step/activity
// detail, and the objects each activity touches.
type AutomationExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewAutomationExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *AutomationExtractor {
	return &AutomationExtractor{rest: rest, cache: c, log: log.Child("automation")}
}

func (e *AutomationExtractor) Type() model.ObjectType { return model.TypeAutomation }

func (e *AutomationExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindAutomationFolders, cache.KindQueries, cache.KindScripts}
}

func (e *AutomationExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	err := paginateJSON(ctx, e.rest, "/automation/v1/automations", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *AutomationExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		bc, err := e.cache.BreadcrumbFor(ctx, cache.KindAutomationFolders, categoryID)
		if err == nil {
			item["folderPath"] = bc.Path
		}
		if statusID, ok := asInt(item["status"]); ok {
			item["statusName"] = automationStatusName(statusID)
		}
		items[i] = item
	}

	if !opts.IncludeDetails {
		return items, nil
	}

	err := boundedEach(ctx, len(items), opts.detailConcurrency(), func(ctx context.Context, i int) error {
		id := fmt.Sprint(items[i]["id"])
		detail, err := e.fetchDetail(ctx, id)
		if err != nil {
			*errs = append(*errs, model.ExtractionError{
				Code: string(errCode(err)), Message: err.Error(), ItemID: id,
			})
			return nil
		}
		for _, step := range asSlice(detail["steps"]) {
			stepMap, ok := step.(map[string]interface{})
			if !ok {
				continue
			}
			for _, act := range asSlice(stepMap["activities"]) {
				if actMap, ok := act.(map[string]interface{}); ok {
					e.enrichActivity(ctx, actMap)
				}
			}
		}
		for k, v := range detail {
			items[i][k] = v
		}
		return nil
	})
	return items, err
}

func (e *AutomationExtractor) fetchDetail(ctx context.Context, id string) (map[string]interface{}, error) {
	resp, err := e.rest.Request(ctx, "GET", "/automation/v1/automations/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, sfmcerr.New(sfmcerr.HTTPNonRetryable, "fetching automation detail "+id, nil)
	}
	var out map[string]interface{}
	if err := unmarshalRaw(resp.Data, &out); err != nil {
		return nil, sfmcerr.New(sfmcerr.ParseError, "decoding automation detail "+id, err)
	}
	return out, nil
}

// enrichActivity resolves activityTypeName and, for activity kinds this
// module also extracts the target object for, the referenced object's
// display name. The live API names these fields objectTypeId and
// activityObjectId, not activityTypeId/objectId.
func (e *AutomationExtractor) enrichActivity(ctx context.Context, act map[string]interface{}) {
	typeID, ok := asInt(act["objectTypeId"])
	if !ok {
		return
	}
	act["activityTypeName"] = activityTypeNameByID(typeID)

	targetID := fmt.Sprint(act["activityObjectId"])
	switch typeID {
	case 300: // Query Activity
		if queries, err := e.cache.Get(ctx, cache.KindQueries); err == nil {
			if m, ok := queries.(map[string]interface{}); ok {
				if q, ok := m[targetID].(map[string]interface{}); ok {
					act["queryName"] = q["name"]
					act["targetDataExtensionId"] = q["targetDataExtensionId"]
					act["targetDataExtensionName"] = q["targetDataExtensionName"]
				}
			}
		}
	case 423: // Script Activity
		if scripts, err := e.cache.Get(ctx, cache.KindScripts); err == nil {
			if m, ok := scripts.(map[string]interface{}); ok {
				if s, ok := m[targetID].(map[string]interface{}); ok {
					act["scriptName"] = s["name"]
				}
			}
		}
	}
}

func (e *AutomationExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])
		obj := model.Object{
			ID:         id,
			Type:       model.TypeAutomation,
			Name:       name,
			FolderID:   fmt.Sprint(item["categoryId"]),
			FolderPath: fmt.Sprint(item["folderPath"]),
			Status:     fmt.Sprint(item["statusName"]),
			Attributes: map[string]interface{}{},
		}
		if key, ok := item["key"]; ok {
			obj.CustomerKey = fmt.Sprint(key)
		}
		for _, field := range []string{"description", "status", "scheduleType", "lastRunTime", "lastRunStatus", "schedule", "notifications"} {
			if v, ok := item[field]; ok {
				obj.Attributes[field] = v
			}
		}

		steps := asSlice(item["steps"])
		obj.Attributes["stepCount"] = len(steps)

		activityCount := 0
		for _, step := range steps {
			stepMap, ok := step.(map[string]interface{})
			if !ok {
				continue
			}
			activities := asSlice(stepMap["activities"])
			activityCount += len(activities)
			for _, act := range activities {
				actMap, ok := act.(map[string]interface{})
				if !ok {
					continue
				}
				edges = append(edges, e.edgesForActivity(id, model.TypeAutomation, name, actMap)...)
			}
		}
		obj.Attributes["activityCount"] = activityCount

		objects = append(objects, obj)
	}

	return objects, edges, nil
}

// edgesForActivity emits one contains_* edge for activity types whose
// target is a modeled object type, plus one writes_de edge per entry in
// targetDataExtensions when present (import, query, and filter activities
// carry this field on top of their primary edge).
func (e *AutomationExtractor) edgesForActivity(sourceID string, sourceType model.ObjectType, sourceName string, act map[string]interface{}) []model.RelationshipEdge {
	var out []model.RelationshipEdge

	typeID, ok := asInt(act["objectTypeId"])
	if !ok {
		return out
	}
	targetID := fmt.Sprint(act["activityObjectId"])

	if t, ok := activityTypeTable[typeID]; ok && t.HasTarget {
		out = append(out, model.RelationshipEdge{
			SourceID: sourceID, SourceType: sourceType, SourceName: sourceName,
			TargetID: targetID, TargetType: t.TargetType, TargetName: fmt.Sprint(act["name"]),
			Kind: t.Relation,
		})
	}

	writesRelation, ok := deWritesRelationForActivity(typeID)
	if ok {
		for _, de := range asSlice(act["targetDataExtensions"]) {
			deMap, ok := de.(map[string]interface{})
			if !ok {
				continue
			}
			out = append(out, model.RelationshipEdge{
				SourceID: targetID, SourceType: activityTypeTable[typeID].TargetType,
				SourceName: fmt.Sprint(act["name"]),
				TargetID:   fmt.Sprint(deMap["id"]), TargetType: model.TypeDataExtension,
				TargetName: fmt.Sprint(deMap["name"]),
				Kind:       writesRelation,
			})
		}
	}
	return out
}

func deWritesRelationForActivity(typeID int) (model.RelationshipType, bool) {
	switch typeID {
	case 43:
		return model.ImportWritesDE, true
	case 300:
		return model.QueryWritesDE, true
	case 303:
		return model.FilterWritesDE, true
	default:
		return "", false
	}
}

func errCode(err error) sfmcerr.Code {
	if c, ok := sfmcerr.CodeOf(err); ok {
		return c
	}
	return "UNKNOWN"
}
