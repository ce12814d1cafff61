package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

// DeliveryProfileExtractor lists delivery profiles over the legacy
// messaging configuration REST endpoint, which is unpaginated and wraps
// its results under "entry" rather than the "items" envelope the newer
// automation endpoints use. It emits no outgoing edges.
type DeliveryProfileExtractor struct {
	rest *restclient.Client
	log  logger.Logger
}

func NewDeliveryProfileExtractor(rest *restclient.Client, log logger.Logger) *DeliveryProfileExtractor {
	return &DeliveryProfileExtractor{rest: rest, log: log.Child("delivery-profile")}
}

func (e *DeliveryProfileExtractor) Type() model.ObjectType { return model.TypeDeliveryProfile }

func (e *DeliveryProfileExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *DeliveryProfileExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	resp, err := e.rest.Request(ctx, "GET", "/legacy/v1/beta/messaging/deliverypolicy/", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, nil
	}

	var out struct {
		Entry []map[string]interface{} `json:"entry"`
	}
	if err := unmarshalRaw(resp.Data, &out); err != nil {
		return nil, err
	}

	items := make([]RawItem, 0, len(out.Entry))
	for _, raw := range out.Entry {
		items = append(items, RawItem(raw))
	}
	return items, nil
}

func (e *DeliveryProfileExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	return items, nil
}

func (e *DeliveryProfileExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["objectID"]),
			Type:        model.TypeDeliveryProfile,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			Attributes: map[string]interface{}{
				"sourceIP":   item["sourceIP"],
				"domainType": item["domainType"],
				"isDefault":  item["isDefault"],
			},
		})
	}
	return objects, nil, nil
}
