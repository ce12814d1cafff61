// Package model defines the data types shared by every extractor and by the
// relationship builder and snapshot writer downstream of them.
package model

import "time"

// ObjectType enumerates the kinds of object an extractor can emit.
type ObjectType string

const (
	TypeAutomation         ObjectType = "automation"
	TypeQuery               ObjectType = "query"
	TypeScript              ObjectType = "script"
	TypeImport              ObjectType = "import"
	TypeDataExtract         ObjectType = "data_extract"
	TypeFileTransfer        ObjectType = "file_transfer"
	TypeFilter              ObjectType = "filter"
	TypeDataExtension       ObjectType = "data_extension"
	TypeEmail               ObjectType = "email"
	TypeJourney             ObjectType = "journey"
	TypeEventDefinition     ObjectType = "event_definition"
	TypeTriggeredSend       ObjectType = "triggered_send"
	TypeList                ObjectType = "list"
	TypeAsset               ObjectType = "asset"
	TypeFolder              ObjectType = "folder"
	TypeSenderProfile       ObjectType = "sender_profile"
	TypeDeliveryProfile     ObjectType = "delivery_profile"
	TypeSendClassification  ObjectType = "send_classification"
)

// Object is the canonical unit emitted by an extractor. Type-specific fields
// live in Attributes rather than as typed struct fields, since the remote
// platform returns heterogeneous shapes per object type and per API version.
type Object struct {
	ID           string                 `json:"id"`
	Type         ObjectType             `json:"type"`
	CustomerKey  string                 `json:"customerKey,omitempty"`
	Name         string                 `json:"name"`
	FolderID     string                 `json:"folderId,omitempty"`
	FolderPath   string                 `json:"folderPath,omitempty"`
	CreatedDate  time.Time              `json:"createdDate,omitempty"`
	ModifiedDate time.Time              `json:"modifiedDate,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
}

// Key returns the (type, id) identity used to index objects.
func (o Object) Key() ObjectKey {
	return ObjectKey{Type: o.Type, ID: o.ID}
}

// ObjectKey identifies an object across extractors; it is the unit the
// relationship graph indexes and the orphan rule table operates on.
type ObjectKey struct {
	Type ObjectType
	ID   string
}

// Folder is a node in a per-content-type folder forest.
type Folder struct {
	ID          string `json:"id"`
	ParentID    string `json:"parentId,omitempty"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
}

// ExtractionError is a per-item or per-page failure collected by an
// extractor without aborting it.
type ExtractionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ItemID  string `json:"itemId,omitempty"`
}

// ExtractorStatus summarizes how an extractor run concluded.
type ExtractorStatus string

const (
	StatusOK      ExtractorStatus = "OK"
	StatusPartial ExtractorStatus = "PARTIAL"
	StatusAborted ExtractorStatus = "ABORTED"
)

// ExtractorResult is the output of a single extractor invocation.
type ExtractorResult struct {
	Type     ObjectType         `json:"type"`
	Items    []Object            `json:"items"`
	Errors   []ExtractionError   `json:"errors"`
	Edges    []RelationshipEdge  `json:"edges"`
	Counters map[string]int      `json:"counters"`
	Status   ExtractorStatus     `json:"status"`
	Started  time.Time           `json:"startedAt"`
	Finished time.Time           `json:"finishedAt"`
}

// NewExtractorResult returns a zero-valued result ready to be appended to.
func NewExtractorResult(t ObjectType) *ExtractorResult {
	return &ExtractorResult{
		Type:     t,
		Counters: make(map[string]int),
		Status:   StatusOK,
	}
}

func (r *ExtractorResult) AddError(e ExtractionError) {
	r.Errors = append(r.Errors, e)
}

func (r *ExtractorResult) IncrCounter(name string, delta int) {
	r.Counters[name] += delta
}
