package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var dataExtensionProperties = []string{
	"ObjectID", "CustomerKey", "Name", "Description", "CategoryID",
	"IsSendable", "IsTestable", "CreatedDate", "ModifiedDate",
}

// DataExtensionExtractor lists data extensions over SOAP and fetches each
// one's field list over REST with bounded concurrency. It emits no
// outgoing edges: a data extension is an endpoint in every edge that
// references one, never a source.
type DataExtensionExtractor struct {
	soap  *soapclient.Client
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewDataExtensionExtractor(soap *soapclient.Client, rest *restclient.Client, c *cache.Manager, log logger.Logger) *DataExtensionExtractor {
	return &DataExtensionExtractor{soap: soap, rest: rest, cache: c, log: log.Child("data-extension")}
}

func (e *DataExtensionExtractor) Type() model.ObjectType { return model.TypeDataExtension }

func (e *DataExtensionExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindDEFolders}
}

func (e *DataExtensionExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	nodes, err := e.soap.RetrieveAllPages(ctx, "DataExtension", dataExtensionProperties, nil)
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, RawItem{
			"id":           n.String("ObjectID"),
			"customerKey":  n.String("CustomerKey"),
			"name":         n.String("Name"),
			"description":  n.String("Description"),
			"categoryId":   n.String("CategoryID"),
			"isSendable":   n.String("IsSendable"),
			"isTestable":   n.String("IsTestable"),
			"createdDate":  n.String("CreatedDate"),
			"modifiedDate": n.String("ModifiedDate"),
		})
	}
	return items, nil
}

func (e *DataExtensionExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		bc, err := e.cache.BreadcrumbFor(ctx, cache.KindDEFolders, categoryID)
		if err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}

	if !opts.IncludeDetails {
		return items, nil
	}

	err := boundedEach(ctx, len(items), opts.detailConcurrency(), func(ctx context.Context, i int) error {
		id := fmt.Sprint(items[i]["id"])
		fields, err := e.fetchFields(ctx, id)
		if err != nil {
			*errs = append(*errs, model.ExtractionError{Code: string(errCode(err)), Message: err.Error(), ItemID: id})
			return nil
		}
		items[i]["fields"] = fields
		return nil
	})
	return items, err
}

func (e *DataExtensionExtractor) fetchFields(ctx context.Context, id string) ([]map[string]interface{}, error) {
	resp, err := e.rest.Request(ctx, "GET", "/data/v1/customobjects/"+id+"/fields", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, nil
	}
	var out struct {
		Fields []map[string]interface{} `json:"fields"`
	}
	if err := unmarshalRaw(resp.Data, &out); err != nil {
		return nil, err
	}
	return out.Fields, nil
}

func (e *DataExtensionExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		fields := item["fields"]
		var primaryKeys []string
		if fieldList, ok := fields.([]map[string]interface{}); ok {
			for _, f := range fieldList {
				if isPK, _ := f["isPrimaryKey"].(bool); isPK {
					primaryKeys = append(primaryKeys, fmt.Sprint(f["name"]))
				}
			}
		}

		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["id"]),
			Type:        model.TypeDataExtension,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Attributes: map[string]interface{}{
				"description":      item["description"],
				"isSendable":       item["isSendable"],
				"isTestable":       item["isTestable"],
				"fields":           fields,
				"fieldCount":       fieldCount(fields),
				"primaryKeyFields": primaryKeys,
			},
		})
	}
	return objects, nil, nil
}

func fieldCount(fields interface{}) int {
	if list, ok := fields.([]map[string]interface{}); ok {
		return len(list)
	}
	return 0
}
