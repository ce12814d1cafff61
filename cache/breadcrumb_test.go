package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve_SimpleChain(t *testing.T) {
	folders := map[string]FolderRef{
		"root":  {Name: "root", ParentID: ""},
		"child": {Name: "child", ParentID: "root"},
		"leaf":  {Name: "leaf", ParentID: "child"},
	}
	b := NewBreadcrumbBuilder(folders, "")

	bc := b.Resolve("leaf")
	require.Equal(t, "root > child > leaf", bc.Path)
	require.False(t, bc.Cyclic)
	require.Empty(t, bc.MissingIDs)
}

func TestResolve_MissingParentProducesSyntheticSegment(t *testing.T) {
	folders := map[string]FolderRef{
		"leaf": {Name: "leaf", ParentID: "ghost"},
	}
	b := NewBreadcrumbBuilder(folders, "")

	bc := b.Resolve("leaf")
	require.Equal(t, "(unknown:ghost) > leaf", bc.Path)
	require.Equal(t, []string{"ghost"}, bc.MissingIDs)
}

func TestResolve_CycleTerminatesAndIsFlagged(t *testing.T) {
	folders := map[string]FolderRef{
		"A": {Name: "A", ParentID: "B"},
		"B": {Name: "B", ParentID: "A"},
	}
	b := NewBreadcrumbBuilder(folders, "")

	done := make(chan Breadcrumb, 1)
	go func() {
		done <- b.Resolve("A")
	}()

	select {
	case bc := <-done:
		require.True(t, bc.Cyclic)
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not terminate on a cyclic folder map")
	}
}

func TestResolve_MemoizesSecondCall(t *testing.T) {
	folders := map[string]FolderRef{
		"root": {Name: "root", ParentID: ""},
	}
	b := NewBreadcrumbBuilder(folders, "")

	first := b.Resolve("root")
	delete(b.folders, "root") // mutate the backing map directly
	second := b.Resolve("root")
	require.Equal(t, first, second)
}

func TestResolve_EmptyFolderIDReturnsEmptyPath(t *testing.T) {
	b := NewBreadcrumbBuilder(map[string]FolderRef{}, "")
	bc := b.Resolve("")
	require.Equal(t, "", bc.Path)
}
