package extract

import (
	"context"
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

var emailProperties = []string{
	"ID", "CustomerKey", "Name", "Subject", "CategoryID", "EmailType",
	"IsHTMLPaste", "CreatedDate", "ModifiedDate",
}

var emailContentProperties = []string{"HTMLBody", "TextBody", "PreHeader"}

// EmailExtractor lists classic emails over SOAP. It emits no outgoing
// edges: the content block and data extension references an email body can
// carry are not extracted by this or any other extractor.
type EmailExtractor struct {
	soap  *soapclient.Client
	cache *cache.Manager
	log   logger.Logger
}

func NewEmailExtractor(soap *soapclient.Client, c *cache.Manager, log logger.Logger) *EmailExtractor {
	return &EmailExtractor{soap: soap, cache: c, log: log.Child("email")}
}

func (e *EmailExtractor) Type() model.ObjectType { return model.TypeEmail }

func (e *EmailExtractor) RequiredCaches() []cache.Kind {
	return []cache.Kind{cache.KindEmailFolders}
}

func (e *EmailExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	props := emailProperties
	if opts.IncludeContent {
		props = append(append([]string{}, emailProperties...), emailContentProperties...)
	}
	nodes, err := e.soap.RetrieveAllPages(ctx, "Email", props, nil)
	if err != nil {
		return nil, err
	}
	items := make([]RawItem, 0, len(nodes))
	for _, n := range nodes {
		item := RawItem{
			"id":           n.String("ID"),
			"customerKey":  n.String("CustomerKey"),
			"name":         n.String("Name"),
			"subject":      n.String("Subject"),
			"categoryId":   n.String("CategoryID"),
			"emailType":    n.String("EmailType"),
			"isHtmlPaste":  soapBool(n.String("IsHTMLPaste")),
			"createdDate":  n.String("CreatedDate"),
			"modifiedDate": n.String("ModifiedDate"),
		}
		if opts.IncludeContent {
			item["htmlBody"] = n.String("HTMLBody")
			item["textBody"] = n.String("TextBody")
			item["preHeader"] = n.String("PreHeader")
		}
		items = append(items, item)
	}
	return items, nil
}

// soapBool coerces the SOAP API's stringified booleans ("true"/"false")
// into a real bool; any other value is treated as false.
func soapBool(v interface{}) bool {
	s, ok := v.(string)
	return ok && s == "true"
}

func (e *EmailExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		categoryID := fmt.Sprint(item["categoryId"])
		if bc, err := e.cache.BreadcrumbFor(ctx, cache.KindEmailFolders, categoryID); err == nil {
			item["folderPath"] = bc.Path
		}
		items[i] = item
	}
	return items, nil
}

func (e *EmailExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	for _, item := range items {
		attrs := map[string]interface{}{
			"subject":     item["subject"],
			"emailType":   item["emailType"],
			"isHtmlPaste": item["isHtmlPaste"],
		}
		if htmlBody, ok := item["htmlBody"]; ok {
			attrs["htmlBody"] = htmlBody
			attrs["textBody"] = item["textBody"]
			attrs["preHeader"] = item["preHeader"]
		}

		objects = append(objects, model.Object{
			ID:          fmt.Sprint(item["id"]),
			Type:        model.TypeEmail,
			CustomerKey: fmt.Sprint(item["customerKey"]),
			Name:        fmt.Sprint(item["name"]),
			FolderID:    fmt.Sprint(item["categoryId"]),
			FolderPath:  fmt.Sprint(item["folderPath"]),
			Attributes:  attrs,
		})
	}
	return objects, nil, nil
}
