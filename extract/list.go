package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var listProperties = []string{
	"ID", "CustomerKey", "ListName", "Description", "Category", "Type",
	"ListClassification", "AutomatedEmail.ID", "CreatedDate", "ModifiedDate",
}

// ListExtractor lists subscriber lists over SOAP. It emits no outgoing
// edges: a publication or suppression list is a target referenced by send
// definitions and journeys, never a source of its own.
type ListExtractor struct {
	soap  *soapclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewListExtractor(soap *soapclient.Client, c *cache.Manager, log logger.Logger) *ListExtractor {
	return &ListExtractor{soap: soap, cache: c, log: log.Child("list")}
}

func (e *ListExtractor) Type() model.ObjectType { return model.TypeList }

func (e *ListExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindListFolders}
}

func (e *ListExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	nodes, err := e.soap.RetrieveAllPages(ctx, "List", listProperties, nil)
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, RawItem{
			"id":             n.String("ID"),
			"customerKey":    n.String("CustomerKey"),
			"name":           n.String("ListName"),
			"description":    n.String("Description"),
			"categoryId":     n.String("Category"),
			"type":           n.String("Type"),
			"classification": n.String("ListClassification"),
			"automatedEmailId": n.String("AutomatedEmail", "ID"),
			"createdDate":    n.String("CreatedDate"),
			"modifiedDate":   n.String("ModifiedDate"),
		})
	}
	return items, nil
}

func (e *ListExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindListFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *ListExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["id"]),
			Type:        model.TypeList,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Attributes: map[string]interface{}{
				"description":      item["description"],
				"type":             item["type"],
				"classification":   item["classification"],
				"automatedEmailId": item["automatedEmailId"],
			},
		})
	}
	return objects, nil, nil
}
