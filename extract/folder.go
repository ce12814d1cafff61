package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var folderProperties = []string{"ID", "CustomerKey", "Name", "ParentFolder.ID", "ContentType"}

// automationContentTypes lists the DataFolder ContentType values whose
// folder trees this inventory walks. Each is fetched with its own filtered
// Retrieve call: the SOAP API has no single call that returns every
// content type's folders at once.
var automationContentTypes = []string{
	"automations", "dataextension", "userinitiatedemail", "triggered_send",
	"subscriberlist", "interaction", "asset", "queryactivity", "script",
	"filterdefinition", "importdefinition", "dataextract", "filetransferactivity",
}

// FolderExtractor lists content folders over SOAP, one filtered Retrieve
// call per content type, and links each folder to its parent. Folders form
// a forest keyed by content type; a folder with no parent is a tree root.
type FolderExtractor struct {
	soap *soapclient.Client
	log  logger.Logger
}

func NewFolderExtractor(soap *soapclient.Client, log logger.Logger) *FolderExtractor {
	return &FolderExtractor{soap: soap, log: log.Child("folder")}
}

func (e *FolderExtractor) Type() model.ObjectType { return model.TypeFolder }

func (e *FolderExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *FolderExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	for _, contentType := range automationContentTypes {
		filter := &soapclient.SimpleFilter{Property: "ContentType", Operator: "equals", Value: contentType}
		nodes, err := e.soap.RetrieveAllPages(ctx, "DataFolder", folderProperties, filter)
		if err != nil {
			e.log.Warnw("folder retrieve failed for content type", "contentType", contentType, "error", err)
			continue
		}
		for _, n := range nodes {
			items = append(items, RawItem{
				"id":          n.String("ID"),
				"customerKey": n.String("CustomerKey"),
				"name":        n.String("Name"),
				"parentId":    n.String("ParentFolder", "ID"),
				"contentType": contentType,
			})
		}
	}
	return items, nil
}

func (e *FolderExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	return items, nil
}

func (e *FolderExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])
		parentID := fmt.Sprint(item["parentId"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeFolder,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        name,
			FolderID:    parentID,
			Attributes: map[string]interface{}{
				"contentType": item["contentType"],
			},
		})

		if notEmpty(parentID) && parentID != "0" {
			edges = append(edges, model.RelationshipEdge{
				SourceID: parentID, SourceType: model.TypeFolder, SourceName: "",
				TargetID: id, TargetType: model.TypeFolder, TargetName: name,
				Kind: model.FolderContainsFolder,
			})
		}
	}

	return objects, edges, nil
}
