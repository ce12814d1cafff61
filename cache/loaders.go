package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rudderlabs/sfmc-inventory/restclient"
	"github.com/rudderlabs/sfmc-inventory/soapclient"
)

// folderContentType pairs a cache Kind with the SOAP DataFolder ContentType
// value that scopes a Retrieve to that folder tree.
type folderContentType struct {
	kind        Kind
	contentType string
}

// soapFolderKinds lists every folder cache backed directly by a SOAP
// DataFolder retrieve. KindJourneyFolders rides on the "interaction"
// content type: Journey Builder folders are filed there, not under a
// dedicated type of their own.
var soapFolderKinds = []folderContentType{
	{KindAutomationFolders, "automations"},
	{KindEmailFolders, "userinitiatedemail"},
	{KindTemplateFolders, "template"},
	{KindTriggeredSendFolders, "triggered_send"},
	{KindListFolders, "subscriberlist"},
	{KindJourneyFolders, "interaction"},
	{KindDEFolders, "dataextension"},
	{KindQueryFolders, "queryactivity"},
	{KindScriptFolders, "script"},
	{KindImportFolders, "importdefinition"},
	{KindDataExtractFolders, "dataextract"},
	{KindFileTransferFolders, "filetransferactivity"},
	{KindFilterFolders, "filterdefinition"},
}

var folderProperties = []string{"ID", "ParentFolder.ID", "Name"}

// BuildLoaders wires a Manager's full set of 17 loaders against the given
// transports. Every folder-map loader normalizes a "0" ParentFolder.ID (the
// SOAP API's root-folder sentinel) to "" so breadcrumb resolution stops
// there instead of chasing a folder id that will never exist in the map.
func BuildLoaders(soap *soapclient.Client, rest *restclient.Client) map[Kind]Loader {
	loaders := make(map[Kind]Loader, len(soapFolderKinds)+4)

	for _, fc := range soapFolderKinds {
		contentType := fc.contentType
		loaders[fc.kind] = func(ctx context.Context) (interface{}, error) {
			return loadSOAPFolders(ctx, soap, contentType)
		}
	}

	loaders[KindContentCategories] = func(ctx context.Context) (interface{}, error) {
		return loadContentCategories(ctx, rest)
	}
	loaders[KindQueries] = func(ctx context.Context) (interface{}, error) {
		return loadQueryDefinitions(ctx, rest)
	}
	loaders[KindScripts] = func(ctx context.Context) (interface{}, error) {
		return loadScriptDefinitions(ctx, rest)
	}
	loaders[KindEmails] = func(ctx context.Context) (interface{}, error) {
		return loadEmailDefinitions(ctx, soap)
	}

	return loaders
}

func loadSOAPFolders(ctx context.Context, soap *soapclient.Client, contentType string) (map[string]FolderRef, error) {
	filter := &soapclient.SimpleFilter{Property: "ContentType", Operator: "equals", Value: contentType}
	nodes, err := soap.RetrieveAllPages(ctx, "DataFolder", folderProperties, filter)
	if err != nil {
		return nil, err
	}

	out := make(map[string]FolderRef, len(nodes))
	for _, n := range nodes {
		id := n.String("ID")
		if id == "" {
			continue
		}
		parentID := n.String("ParentFolder", "ID")
		if parentID == "0" {
			parentID = ""
		}
		out[id] = FolderRef{Name: n.String("Name"), ParentID: parentID}
	}
	return out, nil
}

type categoryItem struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ParentID int    `json:"parentId"`
}

type categoryListEnvelope struct {
	Items []categoryItem `json:"items"`
}

// loadContentCategories pulls Content Builder's category tree, which is
// REST-only and outside the SOAP DataFolder hierarchy asset folders are
// filed under in the classic model.
func loadContentCategories(ctx context.Context, rest *restclient.Client) (map[string]FolderRef, error) {
	out := make(map[string]FolderRef)
	q := url.Values{"$pageSize": []string{"500"}}
	page := 1
	for {
		q.Set("$page", strconv.Itoa(page))
		resp, err := rest.Request(ctx, "GET", "/asset/v1/content/categories", q, nil)
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return out, nil
		}
		var env categoryListEnvelope
		if err := json.Unmarshal(resp.Data, &env); err != nil {
			return nil, err
		}
		if len(env.Items) == 0 {
			return out, nil
		}
		for _, c := range env.Items {
			parentID := strconv.Itoa(c.ParentID)
			if c.ParentID == 0 {
				parentID = ""
			}
			out[strconv.Itoa(c.ID)] = FolderRef{Name: c.Name, ParentID: parentID}
		}
		if len(env.Items) < 500 {
			return out, nil
		}
		page++
	}
}

type restListEnvelope struct {
	Items []json.RawMessage `json:"items"`
}

// paginateCollection drives a $page/$pageSize collection endpoint the same
// way the extractors do, kept as its own copy here so this package does not
// need to import extract (which already imports cache for Deps).
func paginateCollection(ctx context.Context, rest *restclient.Client, path string, onItem func(map[string]interface{})) error {
	pageSize := 50
	for page := 1; ; page++ {
		q := url.Values{
			"$page":     []string{strconv.Itoa(page)},
			"$pageSize": []string{strconv.Itoa(pageSize)},
		}
		resp, err := rest.Request(ctx, "GET", path, q, nil)
		if err != nil {
			return err
		}
		if !resp.OK {
			return nil
		}
		var env restListEnvelope
		if err := json.Unmarshal(resp.Data, &env); err != nil {
			return err
		}
		if len(env.Items) == 0 {
			return nil
		}
		for _, raw := range env.Items {
			var m map[string]interface{}
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			onItem(m)
		}
		if len(env.Items) < pageSize {
			return nil
		}
	}
}

// loadQueryDefinitions resolves a query activity id to the fields the
// automation extractor's activity enrichment surfaces on a query step:
// its name and the data extension it writes to.
func loadQueryDefinitions(ctx context.Context, rest *restclient.Client) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	err := paginateCollection(ctx, rest, "/automation/v1/queries", func(item map[string]interface{}) {
		id := item["queryDefinitionId"]
		if id == nil {
			return
		}
		out[fmt.Sprint(id)] = map[string]interface{}{
			"name":                    item["name"],
			"targetDataExtensionId":   item["targetId"],
			"targetDataExtensionName": item["targetName"],
		}
	})
	return out, err
}

// loadScriptDefinitions resolves a script activity id to its name for the
// automation extractor's activity enrichment.
func loadScriptDefinitions(ctx context.Context, rest *restclient.Client) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	err := paginateCollection(ctx, rest, "/automation/v1/scripts", func(item map[string]interface{}) {
		id := item["ssjsActivityId"]
		if id == nil {
			return
		}
		out[fmt.Sprint(id)] = map[string]interface{}{"name": item["name"]}
	})
	return out, err
}

var emailDefinitionProperties = []string{"ID", "Name"}

// loadEmailDefinitions resolves an email id to its name for extractors that
// only carry an email id reference and need a display name alongside it.
func loadEmailDefinitions(ctx context.Context, soap *soapclient.Client) (map[string]interface{}, error) {
	nodes, err := soap.RetrieveAllPages(ctx, "Email", emailDefinitionProperties, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(nodes))
	for _, n := range nodes {
		id := n.String("ID")
		if id == "" {
			continue
		}
		out[id] = map[string]interface{}{"name": n.String("Name")}
	}
	return out, nil
}

