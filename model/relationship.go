package model

// RelationshipType enumerates the directed edge kinds the extractors can
// emit. The set is a superset of the kinds named explicitly by the core
// component contracts: every extractor named in the domain extractor
// contracts needs a kind for every reference it discovers, not only the
// ones called out by name in prose.
type RelationshipType string

const (
	AutomationContainsQuery          RelationshipType = "automation_contains_query"
	AutomationContainsScript         RelationshipType = "automation_contains_script"
	AutomationContainsImport         RelationshipType = "automation_contains_import"
	AutomationContainsExtract        RelationshipType = "automation_contains_extract"
	AutomationContainsTransfer       RelationshipType = "automation_contains_transfer"
	AutomationContainsEmail          RelationshipType = "automation_contains_email"
	AutomationContainsFilter         RelationshipType = "automation_contains_filter"
	AutomationContainsFireEvent      RelationshipType = "automation_contains_fire_event"
	AutomationContainsJourneyEntry   RelationshipType = "automation_contains_journey_entry"
	AutomationContainsRefreshGroup   RelationshipType = "automation_contains_refresh_group"
	AutomationContainsWait           RelationshipType = "automation_contains_wait"
	AutomationContainsVerification   RelationshipType = "automation_contains_verification"
	AutomationContainsDataFactory    RelationshipType = "automation_contains_data_factory"

	QueryReadsDE  RelationshipType = "query_reads_de"
	QueryWritesDE RelationshipType = "query_writes_de"

	JourneyUsesDE                 RelationshipType = "journey_uses_de"
	JourneyUsesEmail              RelationshipType = "journey_uses_email"
	JourneyUsesFilter             RelationshipType = "journey_uses_filter"
	JourneyUsesAutomation         RelationshipType = "journey_uses_automation"
	JourneyUsesEvent              RelationshipType = "journey_uses_event"
	JourneyUsesAsset              RelationshipType = "journey_uses_asset"
	JourneyUsesSenderProfile      RelationshipType = "journey_uses_sender_profile"
	JourneyUsesDeliveryProfile    RelationshipType = "journey_uses_delivery_profile"
	JourneyUsesSendClassification RelationshipType = "journey_uses_send_classification"
	JourneyUsesList                RelationshipType = "journey_uses_list"

	ImportWritesDE RelationshipType = "import_writes_de"
	ImportReadsFile RelationshipType = "import_reads_file"

	ExtractReadsDE   RelationshipType = "extract_reads_de"
	ExtractWritesFile RelationshipType = "extract_writes_file"

	FilterReadsDE  RelationshipType = "filter_reads_de"
	FilterWritesDE RelationshipType = "filter_writes_de"

	EmailUsesDE           RelationshipType = "email_uses_de"
	EmailUsesContentBlock RelationshipType = "email_uses_content_block"

	TriggeredSendUsesEmail              RelationshipType = "triggered_send_uses_email"
	TriggeredSendUsesList               RelationshipType = "triggered_send_uses_list"
	TriggeredSendUsesSenderProfile      RelationshipType = "triggered_send_uses_sender_profile"
	TriggeredSendUsesDeliveryProfile    RelationshipType = "triggered_send_uses_delivery_profile"
	TriggeredSendUsesSendClassification RelationshipType = "triggered_send_uses_send_classification"

	SendClassificationUsesSenderProfile   RelationshipType = "send_classification_uses_sender_profile"
	SendClassificationUsesDeliveryProfile RelationshipType = "send_classification_uses_delivery_profile"

	EventDefinitionUsesDE RelationshipType = "event_definition_uses_de"

	FolderContainsFolder RelationshipType = "folder_contains_folder"

	ScriptUsesDE RelationshipType = "script_uses_de"
)

// RelationshipEdge is a directed labeled edge between two objects. Both
// endpoints carry their display name for audit purposes even though the
// authoritative identity is (Type, ID).
type RelationshipEdge struct {
	SourceID   string                 `json:"sourceId"`
	SourceType ObjectType             `json:"sourceType"`
	SourceName string                 `json:"sourceName,omitempty"`
	TargetID   string                 `json:"targetId"`
	TargetType ObjectType             `json:"targetType"`
	TargetName string                 `json:"targetName,omitempty"`
	Kind       RelationshipType       `json:"kind"`
	Dangling   bool                   `json:"dangling,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// dedupeKey returns the 5-tuple edges are deduplicated by.
func (e RelationshipEdge) dedupeKey() [5]string {
	return [5]string{
		string(e.SourceType), e.SourceID,
		string(e.Kind),
		string(e.TargetType), e.TargetID,
	}
}

// OrphanedObject records why an object was considered unreferenced.
type OrphanedObject struct {
	ID         string     `json:"id"`
	ObjectType ObjectType `json:"objectType"`
	Name       string     `json:"name"`
	FolderPath string     `json:"folderPath,omitempty"`
	Reason     string     `json:"reason"`
}

// GraphStats summarizes a RelationshipGraph for statistics.json.
type GraphStats struct {
	TotalEdges       int            `json:"totalEdges"`
	TotalNodes       int            `json:"totalNodes"`
	DanglingEdges    int            `json:"danglingEdges"`
	OrphanedCount    int            `json:"orphanedCount"`
	ByRelationshipType map[string]int `json:"byRelationshipType"`
	BySourceType     map[string]int `json:"bySourceType"`
	ByTargetType     map[string]int `json:"byTargetType"`
}

// RelationshipGraph is the fully assembled output of the Relationship
// Builder: an index of every extracted object, the deduplicated edge set,
// and the computed orphan set. It is built exactly once, after every
// extractor has completed, and is read-only thereafter.
type RelationshipGraph struct {
	ObjectIndex map[ObjectKey]Object       `json:"-"`
	Edges       []RelationshipEdge         `json:"edges"`
	Orphans     []OrphanedObject           `json:"orphans"`
	Stats       GraphStats                 `json:"stats"`
}
