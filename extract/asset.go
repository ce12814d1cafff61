package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// assetTypeNames maps the Content Builder asset type id to its display
// name, mirroring the fixed set the Content Builder UI itself uses.
var assetTypeNames = map[int]string{
	1:  "template",
	2:  "templatebasedemail",
	5:  "htmlemail",
	9:  "textonlyemail",
	18: "webpage",
	19: "smartcapture",
	20: "smartcaptureform",
	21: "smartcapturecode",
	22: "webtemplate",
	23: "webtemplatebasedemail",
	24: "component",
	25: "freeformblock",
	26: "htmlblock",
	27: "textblock",
	28: "einsteincontentblock",
	29: "abtestblock",
	30: "dynamiccontentblock",
	31: "stylingblock",
	32: "layoutblock",
	33: "jsonmessage",
	34: "icemailblock",
	37: "mobilemessage",
	38: "mobilecode",
	39: "socialshareblock",
	40: "socialfollowblock",
	41: "buttonblock",
	42: "imageblock",
	43: "codesnippetblock",
	44: "webpagecomponent",
	45: "livecontentblock",
	46: "smartcaptureblock",
	47: "referenceblock",
	48: "folderblock",
	49: "livesmartcaptureblock",
	50: "image",
	51: "document",
	52: "other",
	53: "audio",
	54: "video",
	60: "cloudpage",
	61: "landingpage",
	62: "webform",
	70: "jsonassembly",
	81: "asset-block-template",
}

func assetTypeName(id int) string {
	if name, ok := assetTypeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("unknown (%d)", id)
}

type assetQueryPage struct {
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Count    int                      `json:"count"`
	Items    []json.RawMessage        `json:"items"`
}

// AssetExtractor lists Content Builder assets over the query REST endpoint.
// It emits no outgoing edges: asset bodies can embed AMPscript references
// to data extensions and other content blocks, but resolving those is
// outside this inventory's object graph, which only walks API-structured
// references.
type AssetExtractor struct {
	rest  *restclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewAssetExtractor(rest *restclient.Client, c *cache.Manager, log logger.Logger) *AssetExtractor {
	return &AssetExtractor{rest: rest, cache: c, log: log.Child("asset")}
}

func (e *AssetExtractor) Type() model.ObjectType { return model.TypeAsset }

func (e *AssetExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindContentCategories}
}

func (e *AssetExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var items []RawItem
	err := restclient.Paginate(ctx, pageSize, func(ctx context.Context, page, size int) ([]json.RawMessage, error) {
		body := map[string]interface{}{
			"page": map[string]interface{}{"page": page, "pageSize": size},
			"sort": []map[string]string{{"property": "id", "direction": "ASC"}},
		}
		resp, err := e.rest.Request(ctx, "POST", "/asset/v1/content/assets/query", nil, body)
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, nil
		}
		var out assetQueryPage
		if err := unmarshalRaw(resp.Data, &out); err != nil {
			return nil, err
		}
		return out.Items, nil
	}, func(p restclient.Page) error {
		for _, raw := range p.Items {
			var asset map[string]interface{}
			if err := unmarshalRaw(raw, &asset); err != nil {
				continue
			}
			items = append(items, RawItem(asset))
		}
		return nil
	})
	return items, err
}

func (e *AssetExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		category, _ := item["category"].(map[string]interface{})
		categoryID := ""
		if category != nil {
			categoryID = fmt.Sprint(category["id"])
		}
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindContentCategories, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		item["categoryId"] = categoryID
		if typ, ok := asInt(item["assetType"]); ok {
			item["assetTypeId"] = typ
		} else if assetType, ok := item["assetType"].(map[string]interface{}); ok {
			if id, ok := asInt(assetType["id"]); ok {
				item["assetTypeId"] = id
				item["assetTypeName"] = assetType["name"]
			}
		}
		items[i] = item
	}
	return items, nil
}

func (e *AssetExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		typeName := fmt.Sprint(item["assetTypeName"])
		if typeName == "<nil>" || typeName == "" {
			if id, ok := asInt(item["assetTypeId"]); ok {
				typeName = assetTypeName(id)
			}
		}

		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["id"]),
			Type:        model.TypeAsset,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"assetType":     typeName,
				"description":   item["description"],
				"createdDate":   item["createdDate"],
				"modifiedDate":  item["modifiedDate"],
			},
		})
	}
	return objects, nil, nil
}
