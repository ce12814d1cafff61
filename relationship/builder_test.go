package relationship

import (
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/sfmc-inventory/model"
)

// TestBuild_OrphanComputation is grounded on the fixture: one query Q1 with
// no referencing automation, and one automation A1 that contains query Q2.
// Only Q1 ends up in the orphan set.
func TestBuild_OrphanComputation(t *testing.T) {
	b := New(logger.NOP)

	items := []model.Object{
		{ID: "Q1", Type: model.TypeQuery, Name: "Q1"},
		{ID: "Q2", Type: model.TypeQuery, Name: "Q2"},
		{ID: "A1", Type: model.TypeAutomation, Name: "A1"},
	}
	edges := []model.RelationshipEdge{
		{
			SourceID: "A1", SourceType: model.TypeAutomation,
			TargetID: "Q2", TargetType: model.TypeQuery,
			Kind: model.AutomationContainsQuery,
		},
	}

	graph := b.Build(items, edges)

	var orphanIDs []string
	for _, o := range graph.Orphans {
		orphanIDs = append(orphanIDs, o.ID)
	}
	require.Equal(t, []string{"Q1"}, orphanIDs)
	require.Equal(t, "unreferenced", graph.Orphans[0].Reason)
}

// TestBuild_JBOrphanTriggeredSend is grounded on the fixture: TS_alpha is
// active and filed under a plain triggered_send folder (not an orphan);
// TS_beta is deleted, filed under a journeybuilder folder, and named with a
// journey-generated UUID suffix (an orphan with reason jb_orphan).
func TestBuild_JBOrphanTriggeredSend(t *testing.T) {
	b := New(logger.NOP)

	items := []model.Object{
		{
			ID: "TS_alpha", Type: model.TypeTriggeredSend, Name: "promo-emailv2",
			FolderPath: "/root/triggered_send", Status: "Active",
		},
		{
			ID: "TS_beta", Type: model.TypeTriggeredSend,
			Name:       "promo-emailv2-1b2e3f4a-5b6c-7d8e-9f01-23456789abcd",
			FolderPath: "/root/triggered_send_journeybuilder", Status: "Deleted",
		},
	}

	graph := b.Build(items, nil)

	require.Len(t, graph.Orphans, 1)
	require.Equal(t, "TS_beta", graph.Orphans[0].ID)
	require.Equal(t, "jb_orphan", graph.Orphans[0].Reason)
}

func TestBuild_DedupesEdgesAndFlagsDangling(t *testing.T) {
	b := New(logger.NOP)

	items := []model.Object{
		{ID: "A1", Type: model.TypeAutomation, Name: "A1"},
	}
	dup := model.RelationshipEdge{
		SourceID: "A1", SourceType: model.TypeAutomation,
		TargetID: "Q1", TargetType: model.TypeQuery,
		Kind: model.AutomationContainsQuery,
	}
	graph := b.Build(items, []model.RelationshipEdge{dup, dup})

	require.Len(t, graph.Edges, 1)
	require.True(t, graph.Edges[0].Dangling)
	require.Equal(t, 1, graph.Stats.DanglingEdges)
	require.Equal(t, 1, graph.Stats.TotalEdges)
}
