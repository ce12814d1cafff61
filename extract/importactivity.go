package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// ImportExtractor lists file-to-data-extension import activities over REST
// and links each one to the data extension it writes into.
type ImportExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewImportExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *ImportExtractor {
	return &ImportExtractor{rest: rest, cache: c, log: log.Child("import")}
}

func (e *ImportExtractor) Type() model.ObjectType { return model.TypeImport }

func (e *ImportExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindImportFolders}
}

func (e *ImportExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/automation/v1/imports", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *ImportExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindImportFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *ImportExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["importDefinitionId"])
		name := fmt.Sprint(item["name"])
		location, _ := item["fileTransferLocation"].(map[string]interface{})
		dest, _ := item["destinationObject"].(map[string]interface{})

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeImport,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        name,
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description":  item["description"],
				"importType":   item["importType"],
				"updateType":   item["updateType"],
				"fileSpec":     item["fileSpec"],
				"fileNaming":   item["fileNamingPattern"],
				"location":     location,
				"destination":  dest,
			},
		})

		if dest != nil {
			destID := fmt.Sprint(dest["id"])
			if notEmpty(destID) {
				edges = append(edges, model.RelationshipEdge{
					SourceID: id, SourceType: model.TypeImport, SourceName: name,
					TargetID: destID, TargetType: model.TypeDataExtension, TargetName: fmt.Sprint(dest["name"]),
					Kind: model.ImportWritesDE,
				})
			}
		}
	}

	return objects, edges, nil
}
