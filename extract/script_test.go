package extract

import (
	"context"
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/sfmc-inventory/model"
)

func TestExtractSSJSDEReferences_DedupesAcrossCallForms(t *testing.T) {
	refs := extractSSJSDEReferences(`
		var de = DataExtension.Init("Subscribers_Active");
		var rows = Platform.Function.LookupRows("Subscribers_Active", "Email", email);
		Platform.Function.UpsertData("Other_DE", ["Email"], [email]);
		Platform.Function.InsertData("Other_DE", ["Email"], [email]);
	`)
	require.Equal(t, []string{"Subscribers_Active", "Other_DE"}, refs)
}

func TestExtractSSJSDEReferences_NoMatchesReturnsNil(t *testing.T) {
	refs := extractSSJSDEReferences(`Write("hello world");`)
	require.Nil(t, refs)
}

func TestScriptExtractor_EmitsScriptUsesDEPerReferenceAndCountsUnresolved(t *testing.T) {
	e := NewScriptExtractor(nil, nil, logger.NOP)

	items := []RawItem{
		{
			"ssjsActivityId": "S1", "name": "S1", "key": "S1_KEY", "status": "Active",
			"referencedDataExtensions": []string{"Subscribers_Active", "Other_DE"},
		},
	}

	objects, edges, err := e.TransformData(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Len(t, edges, 2)
	for _, edge := range edges {
		require.Equal(t, model.ScriptUsesDE, edge.Kind)
		require.Equal(t, model.TypeScript, edge.SourceType)
		require.Equal(t, model.TypeDataExtension, edge.TargetType)
	}
	require.Equal(t, 2, e.Counters()["unresolvedReferences"])
}
