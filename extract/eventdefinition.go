package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// EventDefinitionExtractor lists journey entry event definitions over REST
// and links each one to the data extension it binds to, when present.
type EventDefinitionExtractor struct {
	rest *restclient.Client
	log  logger.Logger
}

func NewEventDefinitionExtractor(rest *restclient.Client, log logger.Logger) *EventDefinitionExtractor {
	return &EventDefinitionExtractor{rest: rest, log: log.Child("event-definition")}
}

func (e *EventDefinitionExtractor) Type() model.ObjectType { return model.TypeEventDefinition }

func (e *EventDefinitionExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *EventDefinitionExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/interaction/v1/eventDefinitions", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *EventDefinitionExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	return items, nil
}

func (e *EventDefinitionExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])
		deID, deName := deBinding(item)

		objects = append(objects, model.Object{
			ID:     id,
			Type:   model.TypeEventDefinition,
			Name:   name,
			Status: fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"eventDefinitionKey": item["eventDefinitionKey"],
				"description":        item["description"],
				"type":               item["type"],
				"mode":               item["mode"],
				"dataExtensionId":    deID,
				"dataExtensionName":  deName,
			},
		})

		if notEmpty(deID) {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeEventDefinition, SourceName: name,
				TargetID: deID, TargetType: model.TypeDataExtension, TargetName: deName,
				Kind:     model.EventDefinitionUsesDE,
				Metadata: map[string]interface{}{"usage": "entry_source"},
			})
		}
	}

	return objects, edges, nil
}

// deBinding resolves the data extension an event definition is bound to,
// which the API places either at the top level or nested under schema.
func deBinding(item RawItem) (id, name string) {
	if deID := fmt.Sprint(item["dataExtensionId"]); notEmpty(deID) {
		return deID, fmt.Sprint(item["dataExtensionName"])
	}
	if schema, ok := item["schema"].(map[string]interface{}); ok {
		return fmt.Sprint(schema["id"]), fmt.Sprint(schema["name"])
	}
	return "", ""
}
