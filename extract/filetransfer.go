package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// FileTransferExtractor lists file transfer activities over REST. It emits
// no outgoing edges: the file location it names is outside the inventoried
// object graph.
type FileTransferExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewFileTransferExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *FileTransferExtractor {
	return &FileTransferExtractor{rest: rest, cache: c, log: log.Child("file-transfer")}
}

func (e *FileTransferExtractor) Type() model.ObjectType { return model.TypeFileTransfer }

func (e *FileTransferExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindFileTransferFolders}
}

func (e *FileTransferExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/automation/v1/filetransfers", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *FileTransferExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindFileTransferFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *FileTransferExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		location, _ := item["fileTransferLocation"].(map[string]interface{})
		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["fileTransferActivityId"]),
			Type:        model.TypeFileTransfer,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        fmt.Sprint(item["name"]),
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description":  item["description"],
				"transferType": item["fileTransferType"],
				"location":     location,
			},
		})
	}
	return objects, nil, nil
}
