package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// FilterExtractor lists filter activities over REST and links each one to
// the data extension it reads from and the one it writes its result into.
type FilterExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewFilterExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *FilterExtractor {
	return &FilterExtractor{rest: rest, cache: c, log: log.Child("filter")}
}

func (e *FilterExtractor) Type() model.ObjectType { return model.TypeFilter }

func (e *FilterExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindFilterFolders}
}

func (e *FilterExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/automation/v1/filters", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *FilterExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindFilterFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *FilterExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["filterActivityId"])
		name := fmt.Sprint(item["name"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeFilter,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        name,
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description": item["description"],
				"filterDefinitionId": item["filterDefinitionId"],
			},
		})

		if srcID := fmt.Sprint(item["sourceObjectId"]); notEmpty(srcID) {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeFilter, SourceName: name,
				TargetID: srcID, TargetType: model.TypeDataExtension, TargetName: fmt.Sprint(item["sourceObjectName"]),
				Kind: model.FilterReadsDE,
			})
		}
		if dstID := fmt.Sprint(item["destinationObjectId"]); notEmpty(dstID) {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeFilter, SourceName: name,
				TargetID: dstID, TargetType: model.TypeDataExtension, TargetName: fmt.Sprint(item["destinationObjectName"]),
				Kind: model.FilterWritesDE,
			})
		}
	}

	return objects, edges, nil
}
