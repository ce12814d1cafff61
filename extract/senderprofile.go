package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var senderProfileProperties = []string{
	"ObjectID", "CustomerKey", "Name", "Description", "FromName", "FromAddress",
	"CreatedDate", "ModifiedDate",
}

// SenderProfileExtractor lists sender profiles over SOAP. It emits no
// outgoing edges: sender profiles are targets referenced by triggered
// sends and send classifications, never sources.
//
// A handful of SOAP properties the API exposes on this object
// (AutoForwardTriggeredSend.CustomerKey, ReplyManagementRuleSet.CustomerKey)
// are rejected at the enterprise business-unit level, so they are not
// requested here.
type SenderProfileExtractor struct {
	soap *soapclient.Client
	log  logger.Logger
}

func NewSenderProfileExtractor(soap *soapclient.Client, log logger.Logger) *SenderProfileExtractor {
	return &SenderProfileExtractor{soap: soap, log: log.Child("sender-profile")}
}

func (e *SenderProfileExtractor) Type() model.ObjectType { return model.TypeSenderProfile }

func (e *SenderProfileExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *SenderProfileExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	nodes, err := e.soap.RetrieveAllPages(ctx, "SenderProfile", senderProfileProperties, nil)
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
			"fromName":     n.String("FromName"),
			"fromAddress":  n.String("FromAddress"),
			"createdDate":  n.String("CreatedDate"),
			"modifiedDate": n.String("ModifiedDate"),
		})
	}
	return items, nil
}

func (e *SenderProfileExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	return items, nil
}

func (e *SenderProfileExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["id"]),
			Type:        model.TypeSenderProfile,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			Attributes: map[string]interface{}{
				"description": item["description"],
				"fromName":    item["fromName"],
				"fromAddress": item["fromAddress"],
			},
		})
	}
	return objects, nil, nil
}
