package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var triggeredSendProperties = []string{
	"ObjectID", "CustomerKey", "Name", "Description", "TriggeredSendStatus",
	"Email.ID", "List.ID",
	"SendClassification.CustomerKey", "SenderProfile.CustomerKey", "DeliveryProfile.CustomerKey",
	"CategoryID", "FromName", "FromAddress", "Priority", "CreatedDate", "ModifiedDate",
}

// TriggeredSendExtractor lists triggered send definitions over SOAP and
// emits the five reference edges a triggered send always carries toward
// its email, list, and profile objects.
type TriggeredSendExtractor struct {
	soap  *soapclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewTriggeredSendExtractor(soap *soapclient.Client, c *cache.Manager, log logger.Logger) *TriggeredSendExtractor {
	return &TriggeredSendExtractor{soap: soap, cache: c, log: log.Child("triggered-send")}
}

func (e *TriggeredSendExtractor) Type() model.ObjectType { return model.TypeTriggeredSend }

func (e *TriggeredSendExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindTriggeredSendFolders}
}

func (e *TriggeredSendExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	nodes, err := e.soap.RetrieveAllPages(ctx, "TriggeredSendDefinition", triggeredSendProperties, nil)
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, RawItem{
			"id":                    n.String("ObjectID"),
			"customerKey":           n.String("CustomerKey"),
			"name":                  n.String("Name"),
			"description":           n.String("Description"),
			"status":                n.String("TriggeredSendStatus"),
			"emailId":               n.String("Email", "ID"),
			"listId":                n.String("List", "ID"),
			"sendClassificationKey": n.String("SendClassification", "CustomerKey"),
			"senderProfileKey":      n.String("SenderProfile", "CustomerKey"),
			"deliveryProfileKey":    n.String("DeliveryProfile", "CustomerKey"),
			"categoryId":            n.String("CategoryID"),
			"fromName":              n.String("FromName"),
			"fromAddress":           n.String("FromAddress"),
			"priority":              n.String("Priority"),
			"createdDate":           n.String("CreatedDate"),
			"modifiedDate":          n.String("ModifiedDate"),
		})
	}
	return items, nil
}

func (e *TriggeredSendExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		bc, err := e.cache.BreadcrumbFor(ctx, cache.KindTriggeredSendFolders, categoryID)
		if err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *TriggeredSendExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeTriggeredSend,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        name,
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Status:      fmt.Sprint(item["status"]),
			Attributes: map[string]interface{}{
				"description": item["description"],
				"fromName":    item["fromName"],
				"fromAddress": item["fromAddress"],
				"priority":    item["priority"],
			},
		})

		edges = append(edges, refEdge(id, name, item, "emailId", model.TypeEmail, model.TriggeredSendUsesEmail)...)
		edges = append(edges, refEdge(id, name, item, "listId", model.TypeList, model.TriggeredSendUsesList)...)
		edges = append(edges, refEdge(id, name, item, "senderProfileKey", model.TypeSenderProfile, model.TriggeredSendUsesSenderProfile)...)
		edges = append(edges, refEdge(id, name, item, "deliveryProfileKey", model.TypeDeliveryProfile, model.TriggeredSendUsesDeliveryProfile)...)
		edges = append(edges, refEdge(id, name, item, "sendClassificationKey", model.TypeSendClassification, model.TriggeredSendUsesSendClassification)...)
	}

	return objects, edges, nil
}

// refEdge emits a single edge from (triggered_send, id) to the reference
// stored under field, if that reference is non-empty.
func refEdge(sourceID, sourceName string, item RawItem, field string, targetType model.ObjectType, kind model.RelationshipType) []model.RelationshipEdge {
	targetID := fmt.Sprint(item[field])
	if targetID == "" || targetID == "<nil>" {
		return nil
	}
	return []model.RelationshipEdge{{
		SourceID: sourceID, SourceType: model.TypeTriggeredSend, SourceName: sourceName,
		TargetID: targetID, TargetType: targetType,
		Kind: kind,
	}}
}
