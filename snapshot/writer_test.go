package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rudderlabs/sfmc-inventory/model"
)

func TestGroupOrphansByType_EmitsBareIDListsKeyedByType(t *testing.T) {
	orphans := []model.OrphanedObject{
		{ID: "b", ObjectType: model.ObjectType("email"), Name: "B", Reason: "no journey references it"},
		{ID: "a", ObjectType: model.ObjectType("email"), Name: "A", Reason: "no journey references it"},
		{ID: "c", ObjectType: model.ObjectType("asset"), Name: "C", Reason: "no journey references it"},
	}

	got := groupOrphansByType(orphans)

	require.Equal(t, map[string][]string{
		"email": {"a", "b"},
		"asset": {"c"},
	}, got)
}

func TestGroupOrphansByType_EmptyInputYieldsEmptyMap(t *testing.T) {
	require.Empty(t, groupOrphansByType(nil))
}
