package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rudderlabs/rudder-go-kit/logger"

	"github.com/rudderlabs/sfmc-inventory/cache"
	"github.com/rudderlabs/sfmc-inventory/model"
	"github.com/rudderlabs/sfmc-inventory/restclient"
)

var journeyStatusNames = map[string]string{
	"Draft":               "Draft",
	"Published":           "Published",
	"ScheduledToPublish":  "Scheduled to Publish",
	"Running":             "Running",
	"Paused":              "Paused",
	"Stopped":             "Stopped",
	"Deleted":             "Deleted",
}

// JourneyExtractor lists journeys over REST and, with detail enrichment,
// walks each journey's triggers and activities to discover every object it
// references. Reference kinds whose target has no modeled object type in
// this module (SMS, mobile, push, REST API event targets) are skipped; see
// the automation extractor for the same scoping rule.
type JourneyExtractor struct {
	rest *restclient.Client
	log  logger.Logger
}

func NewJourneyExtractor(rest *restclient.Client, log logger.Logger) *JourneyExtractor {
	return &JourneyExtractor{rest: rest, log: log.Child("journey")}
}

func (e *JourneyExtractor) Type() model.ObjectType { return model.TypeJourney }

func (e *JourneyExtractor) RequiredCaches() []cache.Kind { return nil }

func (e *JourneyExtractor) FetchData(ctx context.Context, opts Options) ([]RawItem, error) {
	var items []RawItem
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	err := paginateJSON(ctx, e.rest, "/interaction/v1/interactions", pageSize, func(raw map[string]interface{}) {
		items = append(items, RawItem(raw))
	})
	return items, err
}

func (e *JourneyExtractor) EnrichData(ctx context.Context, items []RawItem, opts Options, errs *[]model.ExtractionError) ([]RawItem, error) {
	for i, item := range items {
		if status, ok := item["status"].(string); ok {
			if name, ok := journeyStatusNames[status]; ok {
				item["statusName"] = name
			} else {
				item["statusName"] = status
			}
		}
		items[i] = item
	}

	if !opts.IncludeDetails {
		return items, nil
	}

	return items, boundedEach(ctx, len(items), opts.detailConcurrency(), func(ctx context.Context, i int) error {
		id := fmt.Sprint(items[i]["id"])
		detail, err := e.fetchDetail(ctx, id)
		if err != nil {
			*errs = append(*errs, model.ExtractionError{Code: string(errCode(err)), Message: err.Error(), ItemID: id})
			return nil
		}
		for _, field := range []string{"triggers", "activities", "goals", "entryMode", "definitionId", "workflowApiVersion", "stats"} {
			if v, ok := detail[field]; ok {
				items[i][field] = v
			}
		}
		return nil
	})
}

func (e *JourneyExtractor) fetchDetail(ctx context.Context, id string) (map[string]interface{}, error) {
	resp, err := e.rest.Request(ctx, "GET", "/interaction/v1/interactions/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, nil
	}
	var out map[string]interface{}
	if err := unmarshalRaw(resp.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *JourneyExtractor) TransformData(ctx context.Context, items []RawItem) ([]model.Object, []model.RelationshipEdge, error) {
	objects := make([]model.Object, 0, len(items))
	var edges []model.RelationshipEdge

	for _, item := range items {
		id := fmt.Sprint(item["id"])
		name := fmt.Sprint(item["name"])
		triggers := asSlice(item["triggers"])
		activities := asSlice(item["activities"])
		goals := asSlice(item["goals"])

		objects = append(objects, model.Object{
			ID:          id,
			Type:        model.TypeJourney,
			CustomerKey: fmt.Sprint(item["key"]),
			Name:        name,
			Status:      fmt.Sprint(item["statusName"]),
			Attributes: map[string]interface{}{
				"description":   item["description"],
				"version":       item["version"],
				"entryMode":     item["entryMode"],
				"channel":       item["channel"],
				"triggerCount":  len(triggers),
				"activityCount": len(activities),
				"goalCount":     len(goals),
			},
		})

		for _, t := range triggers {
			trigger, ok := t.(map[string]interface{})
			if !ok {
				continue
			}
			edges = append(edges, e.edgesForTrigger(id, name, trigger)...)
		}
		for _, a := range activities {
			activity, ok := a.(map[string]interface{})
			if !ok {
				continue
			}
			edges = append(edges, e.edgesForActivity(id, name, activity)...)
		}
	}

	return objects, edges, nil
}

func (e *JourneyExtractor) edgesForTrigger(journeyID, journeyName string, trigger map[string]interface{}) []model.RelationshipEdge {
	var out []model.RelationshipEdge
	meta, _ := trigger["metaData"].(map[string]interface{})

	if eventDefID := fmt.Sprint(meta["eventDefinitionId"]); eventDefID != "" && eventDefID != "<nil>" {
		out = append(out, model.RelationshipEdge{
			SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
			TargetID: eventDefID, TargetType: model.TypeEventDefinition, TargetName: fmt.Sprint(trigger["name"]),
			Kind:     model.JourneyUsesEvent,
			Metadata: map[string]interface{}{"eventDefinitionKey": meta["eventDefinitionKey"]},
		})
	}

	configArgs, _ := trigger["configurationArguments"].(map[string]interface{})
	eventDataConfig, _ := configArgs["eventDataConfig"].(map[string]interface{})
	if deKey := fmt.Sprint(eventDataConfig["deKey"]); deKey != "" && deKey != "<nil>" {
		out = append(out, usageEdge(journeyID, journeyName, deKey, model.TypeDataExtension, model.JourneyUsesDE, "entry_event"))
	}
	return out
}

func (e *JourneyExtractor) edgesForActivity(journeyID, journeyName string, activity map[string]interface{}) []model.RelationshipEdge {
	var out []model.RelationshipEdge
	activityType := fmt.Sprint(activity["type"])
	lowerType := strings.ToLower(activityType)
	configArgs, _ := activity["configurationArguments"].(map[string]interface{})

	if strings.Contains(lowerType, "email") || activityType == "EMAILV2" {
		ts, _ := configArgs["triggeredSend"].(map[string]interface{})
		if emailID := fmt.Sprint(ts["emailId"]); emailID != "" && emailID != "<nil>" {
			out = append(out, model.RelationshipEdge{
				SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: emailID, TargetType: model.TypeEmail, Kind: model.JourneyUsesEmail,
			})
		}
		if assetID, assetKey := fmt.Sprint(ts["assetId"]), fmt.Sprint(ts["assetKey"]); notEmpty(assetID) || notEmpty(assetKey) {
			out = append(out, model.RelationshipEdge{
				SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: firstNonEmpty(assetID, assetKey), TargetType: model.TypeAsset, Kind: model.JourneyUsesAsset,
				Metadata: map[string]interface{}{"assetKey": ts["assetKey"]},
			})
		}
		if spID := fmt.Sprint(ts["senderProfileId"]); notEmpty(spID) {
			out = append(out, model.RelationshipEdge{SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: spID, TargetType: model.TypeSenderProfile, Kind: model.JourneyUsesSenderProfile})
		}
		if dpID := fmt.Sprint(ts["deliveryProfileId"]); notEmpty(dpID) {
			out = append(out, model.RelationshipEdge{SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: dpID, TargetType: model.TypeDeliveryProfile, Kind: model.JourneyUsesDeliveryProfile})
		}
		if scID := fmt.Sprint(ts["sendClassificationId"]); notEmpty(scID) {
			out = append(out, model.RelationshipEdge{SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: scID, TargetType: model.TypeSendClassification, Kind: model.JourneyUsesSendClassification})
		}
		if plID := fmt.Sprint(ts["publicationListId"]); notEmpty(plID) {
			out = append(out, usageEdge(journeyID, journeyName, plID, model.TypeList, model.JourneyUsesList, "publication_list"))
		}
		for _, supp := range asSlice(ts["suppressionLists"]) {
			listID := idOrSelf(supp)
			if notEmpty(listID) {
				out = append(out, usageEdge(journeyID, journeyName, listID, model.TypeList, model.JourneyUsesList, "suppression_list"))
			}
		}
		for _, excl := range asSlice(ts["domainExclusions"]) {
			deID := idOrSelf(excl)
			if notEmpty(deID) {
				out = append(out, usageEdge(journeyID, journeyName, deID, model.TypeDataExtension, model.JourneyUsesDE, "domain_exclusion"))
			}
		}
	}

	meta, _ := activity["metaData"].(map[string]interface{})
	ht, _ := meta["highThroughput"].(map[string]interface{})
	if htKey := firstNonEmpty(fmt.Sprint(ht["dataExtensionKey"]), fmt.Sprint(ht["deKey"])); notEmpty(htKey) {
		out = append(out, usageEdge(journeyID, journeyName, htKey, model.TypeDataExtension, model.JourneyUsesDE, "high_throughput"))
	}

	if activityType != "EMAILV2" && activityType != "EMAIL" {
		if assetID, assetKey := fmt.Sprint(configArgs["assetId"]), fmt.Sprint(configArgs["assetKey"]); notEmpty(assetID) || notEmpty(assetKey) {
			out = append(out, model.RelationshipEdge{
				SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: firstNonEmpty(assetID, assetKey), TargetType: model.TypeAsset, Kind: model.JourneyUsesAsset,
				Metadata: map[string]interface{}{"assetKey": configArgs["assetKey"], "activityType": activityType},
			})
		}
	}

	if activityType == "ENGAGMENTSPLIT" || strings.Contains(lowerType, "filter") {
		if filterID := fmt.Sprint(configArgs["filterId"]); notEmpty(filterID) {
			out = append(out, model.RelationshipEdge{SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: filterID, TargetType: model.TypeFilter, Kind: model.JourneyUsesFilter})
		}
	}

	if activityType == "UPDATECONTACTDATA" {
		if deKey := fmt.Sprint(configArgs["deKey"]); notEmpty(deKey) {
			out = append(out, usageEdge(journeyID, journeyName, deKey, model.TypeDataExtension, model.JourneyUsesDE, "update_contact"))
		}
	}

	if activityType == "DATAEXTENSIONUPDATE" {
		if deID := fmt.Sprint(configArgs["dataExtensionId"]); notEmpty(deID) {
			out = append(out, usageEdge(journeyID, journeyName, deID, model.TypeDataExtension, model.JourneyUsesDE, "data_extension_update"))
		}
	}

	if activityType == "FIREAUTOMATION" {
		if automationID := fmt.Sprint(configArgs["automationId"]); notEmpty(automationID) {
			out = append(out, model.RelationshipEdge{SourceID: journeyID, SourceType: model.TypeJourney, SourceName: journeyName,
				TargetID: automationID, TargetType: model.TypeAutomation, Kind: model.JourneyUsesAutomation})
		}
	}

	return out
}

func usageEdge(sourceID, sourceName, targetID string, targetType model.ObjectType, kind model.RelationshipType, usage string) model.RelationshipEdge {
	return model.RelationshipEdge{
		SourceID: sourceID, SourceType: model.TypeJourney, SourceName: sourceName,
		TargetID: targetID, TargetType: targetType, Kind: kind,
		Metadata: map[string]interface{}{"usage": usage},
	}
}

func idOrSelf(v interface{}) string {
	if m, ok := v.(map[string]interface{}); ok {
		return fmt.Sprint(m["id"])
	}
	return fmt.Sprint(v)
}

func notEmpty(s string) bool { return s != "" && s != "<nil>" }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if notEmpty(v) {
			return v
		}
	}
	return ""
}
