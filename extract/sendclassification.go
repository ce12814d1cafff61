package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var sendClassificationProperties = []string{
	"ObjectID", "CustomerKey", "Name", "Description", "SendClassificationType",
	"SenderProfile.CustomerKey", "DeliveryProfile.CustomerKey",
	"CreatedDate", "ModifiedDate",
}

// SendClassificationExtractor lists send classifications over SOAP and
// links each one to the sender profile and delivery profile it combines.
//
// A few nested properties the API exposes here (HonorPublicationListOptOutsForTransactionalSends,
// SendPriority) are rejected at the enterprise business-unit level and are
// not requested.
type SendClassificationExtractor struct {
	soap *soapclient.Client
	log  logger.Logger
}

func NewSendClassificationExtractor(soap *soapclient.Client, log logger.Logger) *SendClassificationExtractor {
	return &SendClassificationExtractor{soap: soap, log: log.Child("send-classification")}
}

func (e *SendClassificationExtractor) Type() model.ObjectType { return model.TypeSendClassification }

func (e *SendClassificationExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *SendClassificationExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	nodes, err := e.soap.RetrieveAllPages(ctx, "SendClassification", sendClassificationProperties, nil)
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, RawItem{
			"id":                  n.String("ObjectID"),
			"customerKey":         n.String("CustomerKey"),
			"name":                n.String("Name"),
			"description":         n.String("Description"),
			"classificationType":  n.String("SendClassificationType"),
			"senderProfileKey":    n.String("SenderProfile", "CustomerKey"),
			"deliveryProfileKey":  n.String("DeliveryProfile", "CustomerKey"),
			"createdDate":         n.String("CreatedDate"),
			"modifiedDate":        n.String("ModifiedDate"),
		})
	}
	return items, nil
}

func (e *SendClassificationExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	return items, nil
}

func (e *SendClassificationExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeSendClassification,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        name,
			Attributes: map[string]interface{}{
				"description":        item["description"],
				"classificationType": item["classificationType"],
			},
		})

		if key := fmt.Sprint(item["senderProfileKey"]); notEmpty(key) {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeSendClassification, SourceName: name,
				TargetID: key, TargetType: model.TypeSenderProfile, TargetName: key,
				Kind:     model.SendClassificationUsesSenderProfile,
				Metadata: map[string]interface{}{"resolvedByKey": true},
			})
		}
		if key := fmt.Sprint(item["deliveryProfileKey"]); notEmpty(key) {
			edges = append(edges, model.RelationshipEdge{
				SourceID: id, SourceType: model.TypeSendClassification, SourceName: name,
				TargetID: key, TargetType: model.TypeDeliveryProfile, TargetName: key,
				Kind:     model.SendClassificationUsesDeliveryProfile,
				Metadata: map[string]interface{}{"resolvedByKey": true},
			})
		}
	}

	return objects, edges, nil
}
