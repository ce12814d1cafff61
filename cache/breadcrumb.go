package cache

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rudderlabs/rudder-go-kit/config"
)

const defaultSeparator = " > "

// Breadcrumb is a resolved folder path plus the bookkeeping a caller needs
// to know whether to trust it fully.
type Breadcrumb struct {
	Path        string
	Cyclic      bool
	MissingIDs  []string
}

// BreadcrumbBuilder resolves "root > child > leaf" paths over a folder map,
// memoizing results and terminating safely on cyclic or incomplete maps.
type BreadcrumbBuilder struct {
	separator string
	mu        sync.Mutex
	folders   map[string]FolderRef
	memo      *lru.Cache[string, Breadcrumb]
}

// FolderRef is a folder map entry: its display name and its parent's id.
type FolderRef struct {
	Name     string
	ParentID string
}

// NewBreadcrumbBuilder builds a resolver over a snapshot of a folder map.
// folders maps folder id to {parentId, name}.
func NewBreadcrumbBuilder(folders map[string]FolderRef, separator string) *BreadcrumbBuilder {
	if separator == "" {
		separator = defaultSeparator
	}
	// breadcrumbMemoSize bounds the memoization table so a pathological
	// number of distinct folder ids in one run cannot grow it unboundedly;
	// it is distinct from the write-once reference caches the manager
	// otherwise keeps.
	breadcrumbMemoSize := config.GetIntVar(4096, 1, "SfmcInventory.Cache.breadcrumbMemoSize")
	memo, _ := lru.New[string, Breadcrumb](breadcrumbMemoSize)
	return &BreadcrumbBuilder{separator: separator, folders: folders, memo: memo}
}

// Resolve computes the breadcrumb for a folder id. Memoized across calls.
// Cycle detection is iterative with an explicit visited set: if the walk
// revisits a folder id, it stops at the revisit and marks the path cyclic
// rather than looping forever. A missing parent terminates the walk with a
// synthetic "(unknown:<id>)" segment and records the missing id.
func (b *BreadcrumbBuilder) Resolve(folderID string) Breadcrumb {
	if folderID == "" {
		return Breadcrumb{Path: ""}
	}

	if cached, ok := b.memo.Get(folderID); ok {
		return cached
	}

	b.mu.Lock()
	result := b.resolveLocked(folderID)
	b.mu.Unlock()

	b.memo.Add(folderID, result)
	return result
}

func (b *BreadcrumbBuilder) resolveLocked(folderID string) Breadcrumb {
	var segments []string
	visited := make(map[string]bool)
	cyclic := false
	var missing []string

	cur := folderID
	for cur != "" {
		if visited[cur] {
			cyclic = true
			break
		}
		visited[cur] = true

		ref, ok := b.folders[cur]
		if !ok {
			segments = append([]string{fmt.Sprintf("(unknown:%s)", cur)}, segments...)
			missing = append(missing, cur)
			break
		}
		segments = append([]string{ref.Name}, segments...)
		cur = ref.ParentID
	}

	return Breadcrumb{
		Path:       strings.Join(segments, b.separator),
		Cyclic:     cyclic,
		MissingIDs: missing,
	}
}
