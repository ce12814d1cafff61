package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// DataExtractExtractor lists data extract activities over REST and links
// each one to every data extension named in its field list, since an
// extract can pull from more than one source.
type DataExtractExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewDataExtractExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *DataExtractExtractor {
	return &DataExtractExtractor{rest: rest, cache: c, log: log.Child("data-extract")}
}

func (e *DataExtractExtractor) Type() model.ObjectType { return model.TypeDataExtract }

func (e *DataExtractExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindDataExtractFolders}
}

func (e *DataExtractExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/automation/v1/dataextracts", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *DataExtractExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindDataExtractFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *DataExtractExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["dataExtractActivityId"])
		name := fmt.Sprint(item["name"])
		extractType, _ := item["dataExtractType"].(map[string]interface{})

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeDataExtract,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        name,
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description": item["description"],
				"extractType": extractType,
				"fileNaming":  item["fileNamingPattern"],
			},
		})

		for _, raw := range asSlice(item["dataFields"]) {
			field, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			de, ok := field["dataExtension"].(map[string]interface{})
			if !ok {
				continue
			}
			deID := fmt.Sprint(de["id"])
			if !notEmpty(deID) {
				continue
			}
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeDataExtract, SourceName: name,
				TargetID: deID, TargetType: model.TypeDataExtension, TargetName: fmt.Sprint(de["name"]),
				Kind: model.ExtractReadsDE,
			})
		}
	}

	return objects, edges, nil
}
