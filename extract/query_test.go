package extract

import (
	"context"
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/sfmc-inventory/model"
)

func TestExtractDEReferences_FiltersSystemTablesAndDedupes(t *testing.T) {
	refs := extractDEReferences(`SELECT a.Email FROM de_a a
		JOIN de_b b ON a.SubscriberKey = b.SubscriberKey
		LEFT JOIN _sys_x x ON x.id = a.id
		JOIN ENT.de_shared s ON s.id = a.id
		JOIN de_a dup ON dup.id = a.id`)

	names := make(map[string]bool)
	for _, r := range refs {
		names[r.Name] = true
	}
	require.True(t, names["de_a"])
	require.True(t, names["de_b"])
	require.True(t, names["de_shared"])
	require.False(t, names["_sys_x"])
	require.Len(t, refs, 3)

	for _, r := range refs {
		if r.Name == "de_shared" {
			require.True(t, r.IsShared)
		}
		if r.Name == "de_a" {
			require.False(t, r.IsShared)
		}
	}
}

func TestExtractDEReferences_ExcludesSupplementalSystemTables(t *testing.T) {
	refs := extractDEReferences(`SELECT * FROM information_schema.tables
		JOIN dual d ON 1=1
		JOIN subscribers s ON 1=1
		JOIN subscriberattributes sa ON 1=1
		JOIN de_real r ON 1=1`)
	require.Len(t, refs, 1)
	require.Equal(t, "de_real", refs[0].Name)
}

// TestQueryExtractor_HappyPathQueriesOnly is grounded on the three-query,
// one-system-table fixture: Q1 reads de_a and de_b and writes de_out, Q2
// reads only a system table and contributes no edges, Q3 reads de_a and
// writes de_out.
func TestQueryExtractor_HappyPathQueriesOnly(t *testing.T) {
	e := NewQueryExtractor(nil, nil, logger.NOP)

	items := []RawItem{
		{
			"queryDefinitionId": "Q1", "name": "Q1", "targetId": "de_out", "targetName": "de_out",
			"referencedDataExtensions": extractDEReferences("SELECT * FROM de_a JOIN de_b ON de_a.id = de_b.id"),
		},
		{
			"queryDefinitionId": "Q2", "name": "Q2",
			"referencedDataExtensions": extractDEReferences("SELECT * FROM _sys_x"),
		},
		{
			"queryDefinitionId": "Q3", "name": "Q3", "targetId": "de_out", "targetName": "de_out",
			"referencedDataExtensions": extractDEReferences("SELECT * FROM de_a"),
		},
	}

	objects, edges, err := e.TransformData(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, objects, 3)

	type pair struct {
		src, kind, dst string
	}
	got := make(map[pair]bool)
	for _, edge := range edges {
		got[pair{edge.SourceID, string(edge.Kind), edge.TargetID}] = true
	}

	require.True(t, got[pair{"Q1", string(model.QueryReadsDE), "de_a"}])
	require.True(t, got[pair{"Q1", string(model.QueryReadsDE), "de_b"}])
	require.True(t, got[pair{"Q1", string(model.QueryWritesDE), "de_out"}])
	require.True(t, got[pair{"Q3", string(model.QueryReadsDE), "de_a"}])
	require.True(t, got[pair{"Q3", string(model.QueryWritesDE), "de_out"}])

	for p := range got {
		require.NotEqual(t, "_sys_x", p.dst)
	}

	require.Equal(t, 3, e.Counters()["unresolvedReferences"])
}
