package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/rudderlabs/rudder-go-kit/logger"
	"github.com/rudderlabs/rudder-go-kit/stats"
	"github.com/stretchr/testify/require"
)

func TestGet_LoadsOnceUnderConcurrentCallers(t *testing.T) {
	var loads atomic.Int32
	loaders := map[Kind]Loader{
		KindQueries: func(ctx context.Context) (interface{}, error) {
			loads.Add(1)
			return map[string]interface{}{"q1": "SELECT 1"}, nil
		},
	}
	m := New(loaders, logger.NOP, stats.NOP)

	const n = 20
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := m.Get(context.Background(), KindQueries)
			require.NoError(t, err)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	require.Equal(t, int32(1), loads.Load())
}

func TestGet_UnknownKindFails(t *testing.T) {
	m := New(map[Kind]Loader{}, logger.NOP, stats.NOP)
	_, err := m.Get(context.Background(), KindEmails)
	require.Error(t, err)
}

func TestWarm_LoadsAllRequestedKinds(t *testing.T) {
	var aLoaded, bLoaded atomic.Bool
	loaders := map[Kind]Loader{
		KindQueries: func(ctx context.Context) (interface{}, error) {
			aLoaded.Store(true)
			return map[string]interface{}{}, nil
		},
		KindScripts: func(ctx context.Context) (interface{}, error) {
			bLoaded.Store(true)
			return map[string]interface{}{}, nil
		},
	}
	m := New(loaders, logger.NOP, stats.NOP)

	err := m.Warm(context.Background(), []Kind{KindQueries, KindScripts})
	require.NoError(t, err)
	require.True(t, aLoaded.Load())
	require.True(t, bLoaded.Load())
}

func TestBreadcrumbFor_ResolvesThroughLoadedFolderCache(t *testing.T) {
	loaders := map[Kind]Loader{
		KindDEFolders: func(ctx context.Context) (interface{}, error) {
			return map[string]FolderRef{
				"root": {Name: "Data Extensions", ParentID: ""},
				"sub":  {Name: "Campaigns", ParentID: "root"},
			}, nil
		},
	}
	m := New(loaders, logger.NOP, stats.NOP)

	bc, err := m.BreadcrumbFor(context.Background(), KindDEFolders, "sub")
	require.NoError(t, err)
	require.Equal(t, "Data Extensions > Campaigns", bc.Path)
}
