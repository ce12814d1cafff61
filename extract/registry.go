package extract

import (
	"fmt"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/ratelimiter"
	"github.com/rudderlabs/sfmc-inventory/restclient"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

// Deps bundles the transports and cache manager every extractor
// constructor draws from. Not every extractor uses every field. Limiter is
// optional; when set, Build scopes REST and SOAP to kind before handing
// them to the extractor constructor, so the rate limiter's per-kind state
// machine gates exactly the calls that kind makes.
type Deps struct {
	REST    *restclient.Client
	SOAP    *soapclient.Client
	Cache   *cache.Manager
	Limiter *ratelimiter.Limiter
	Log     logger.Logger
}

// Build constructs the Extractor registered under kind. kind is the plain
// string form of a model.ObjectType, matching config.PresetKinds' output.
func Build(kind string, d Deps) (Extractor, error) {
	if d.Limiter != nil {
		if d.REST != nil {
			d.REST = d.REST.WithKind(d.Limiter, kind)
		}
		if d.SOAP != nil {
			d.SOAP = d.SOAP.WithKind(d.Limiter, kind)
		}
	}

	switch kind {
	case "automation":
		return NewAutomationExtractor(d.REST, d.Cache, d.Log), nil
	case "query":
		return NewQueryExtractor(d.REST, d.Cache, d.Log), nil
	case "script":
		return NewScriptExtractor(d.REST, d.Cache, d.Log), nil
	case "import":
		return NewImportExtractor(d.REST, d.Cache, d.Log), nil
	case "data_extract":
		return NewDataExtractExtractor(d.REST, d.Cache, d.Log), nil
	case "file_transfer":
		return NewFileTransferExtractor(d.REST, d.Cache, d.Log), nil
	case "filter":
		return NewFilterExtractor(d.REST, d.Cache, d.Log), nil
	case "data_extension":
		return NewDataExtensionExtractor(d.SOAP, d.REST, d.Cache, d.Log), nil
	case "triggered_send":
		return NewTriggeredSendExtractor(d.SOAP, d.Cache, d.Log), nil
	case "journey":
		return NewJourneyExtractor(d.REST, d.Log), nil
	case "event_definition":
		return NewEventDefinitionExtractor(d.REST, d.Log), nil
	case "email":
		return NewEmailExtractor(d.SOAP, d.Cache, d.Log), nil
	case "list":
		return NewListExtractor(d.SOAP, d.Cache, d.Log), nil
	case "asset":
		return NewAssetExtractor(d.REST, d.Cache, d.Log), nil
	case "folder":
		return NewFolderExtractor(d.SOAP, d.Log), nil
	case "sender_profile":
		return NewSenderProfileExtractor(d.SOAP, d.Log), nil
	case "delivery_profile":
		return NewDeliveryProfileExtractor(d.REST, d.Log), nil
	case "send_classification":
		return NewSendClassificationExtractor(d.SOAP, d.Log), nil
	default:
		return nil, fmt.Errorf("extract: unknown kind %q", kind)
	}
}

// AllKinds lists every kind Build recognizes, in the order the full preset
// runs them.
func AllKinds() []string {
	return []string{
		"automation", "data_extension", "query", "script", "import",
		"data_extract", "file_transfer", "filter", "journey",
		"triggered_send", "event_definition", "email", "list", "asset",
		"folder", "sender_profile", "delivery_profile", "send_classification",
	}
}
