package extract

import (
	"fmt"

	"github.com/rudderlabs/sfmc-inventory/model"
)

// ActivityType describes one entry in the automation activity-type code
// table. The remote platform's activity-type vocabulary evolves over time
// and is not part of any stable API contract, so this table is carried as
// versioned data rather than encoded as a switch statement: adding a code
// is a data change, not a behavior change.
type ActivityType struct {
	Name       string
	Relation   model.RelationshipType
	TargetType model.ObjectType
	// HasTarget is false for activity types that carry no external object
	// reference (e.g. Wait, Verification) - they are still classified by
	// name but never emit a contains_* edge.
	HasTarget bool
}

// activityTypeTable is grounded on the remote platform's evolving
// automation activity-type vocabulary. Codes with HasTarget false either
// carry no object reference (Wait, Verification) or reference object kinds
// this module does not extract (SMS definitions, Salesforce campaigns, push
// definitions, refresh groups); both are classified by name only.
var activityTypeTable = map[int]ActivityType{
	42:   {Name: "Email Send", Relation: model.AutomationContainsEmail, TargetType: model.TypeEmail, HasTarget: true},
	43:   {Name: "Import File", Relation: model.AutomationContainsImport, TargetType: model.TypeImport, HasTarget: true},
	45:   {Name: "Refresh Group", Relation: model.AutomationContainsRefreshGroup, HasTarget: false},
	53:   {Name: "File Transfer", Relation: model.AutomationContainsTransfer, TargetType: model.TypeFileTransfer, HasTarget: true},
	73:   {Name: "Data Extract", Relation: model.AutomationContainsExtract, TargetType: model.TypeDataExtract, HasTarget: true},
	84:   {Name: "Report Definition", HasTarget: false},
	300:  {Name: "Query Activity", Relation: model.AutomationContainsQuery, TargetType: model.TypeQuery, HasTarget: true},
	303:  {Name: "Filter Activity", Relation: model.AutomationContainsFilter, TargetType: model.TypeFilter, HasTarget: true},
	423:  {Name: "Script Activity", Relation: model.AutomationContainsScript, TargetType: model.TypeScript, HasTarget: true},
	425:  {Name: "Data Factory Utility", Relation: model.AutomationContainsDataFactory, HasTarget: false},
	427:  {Name: "Build Audience", HasTarget: false},
	467:  {Name: "Wait Activity", Relation: model.AutomationContainsWait, HasTarget: false},
	667:  {Name: "Journey Entry Injection", Relation: model.AutomationContainsJourneyEntry, TargetType: model.TypeEventDefinition, HasTarget: true},
	724:  {Name: "Refresh Mobile Filtered List", Relation: model.AutomationContainsRefreshGroup, HasTarget: false},
	725:  {Name: "SMS", HasTarget: false},
	726:  {Name: "Import Mobile Contact", HasTarget: false},
	733:  {Name: "Journey Entry (Legacy)", Relation: model.AutomationContainsJourneyEntry, TargetType: model.TypeEventDefinition, HasTarget: true},
	736:  {Name: "Push Notification", HasTarget: false},
	749:  {Name: "Fire Event", Relation: model.AutomationContainsFireEvent, TargetType: model.TypeEventDefinition, HasTarget: true},
	771:  {Name: "Salesforce Send", HasTarget: false},
	783:  {Name: "Send SMS (v2)", HasTarget: false},
	952:  {Name: "Journey Entry", Relation: model.AutomationContainsJourneyEntry, TargetType: model.TypeEventDefinition, HasTarget: true},
	1000: {Name: "Verification Activity", Relation: model.AutomationContainsVerification, HasTarget: false},
	1010: {Name: "Interaction Studio Data", HasTarget: false},
	1101: {Name: "Interactions", HasTarget: false},
}

// activityTypeNameByID returns the human-readable activity type name, or a
// placeholder carrying the raw code so an unrecognized future code never
// silently disappears from the output.
func activityTypeNameByID(id int) string {
	if t, ok := activityTypeTable[id]; ok {
		return t.Name
	}
	return fmt.Sprintf("Unknown (%d)", id)
}

var automationStatusNames = map[int]string{
	-1: "Error",
	0:  "Building",
	1:  "Ready",
	2:  "Running",
	3:  "Paused",
	4:  "Stopped",
	5:  "Scheduled",
	6:  "Awaiting Trigger",
	7:  "InactiveTrigger",
	8:  "Skipped",
}

func automationStatusName(id int) string {
	if n, ok := automationStatusNames[id]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (%d)", id)
}
