package proxypool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b9dashboard/harvester/internal/store"
)

type fakeStore struct {
	proxies    []store.Proxy
	loadErr    error
	statsCalls []int64
}

func (f *fakeStore) LoadActiveProxies(ctx context.Context) ([]store.Proxy, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.proxies, nil
}

func (f *fakeStore) UpdateProxyStats(ctx context.Context, proxyID int64, success bool) error {
	f.statsCalls = append(f.statsCalls, proxyID)
	return nil
}

func TestLoadFailsOnEmptyProxySet(t *testing.T) {
	pool := New(&fakeStore{})
	err := pool.Load(context.Background())
	require.Error(t, err)
}

func TestLoadFailsOnStoreError(t *testing.T) {
	pool := New(&fakeStore{loadErr: fmt.Errorf("connection refused")})
	err := pool.Load(context.Background())
	require.Error(t, err)
}

func TestNextRotatesRoundRobin(t *testing.T) {
	fs := &fakeStore{proxies: []store.Proxy{
		{ID: 1, URL: "proxy-a:8080"},
		{ID: 2, URL: "proxy-b:8080"},
		{ID: 3, URL: "proxy-c:8080"},
	}}
	pool := New(fs)
	require.NoError(t, pool.Load(context.Background()))

	var ids []int64
	for i := 0; i < 7; i++ {
		p, err := pool.Next()
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	assert.Equal(t, []int64{1, 2, 3, 1, 2, 3, 1}, ids)
}

func TestNextFailsWhenUnloaded(t *testing.T) {
	pool := New(&fakeStore{})
	_, err := pool.Next()
	require.Error(t, err)
}

func TestUpdateStatsDelegatesToStore(t *testing.T) {
	fs := &fakeStore{proxies: []store.Proxy{{ID: 42, URL: "proxy:8080"}}}
	pool := New(fs)
	require.NoError(t, pool.Load(context.Background()))

	proxy, err := pool.Next()
	require.NoError(t, err)
	require.NoError(t, pool.UpdateStats(context.Background(), proxy, true))

	assert.Equal(t, []int64{42}, fs.statsCalls)
}

func TestLenReflectsLoadedCount(t *testing.T) {
	fs := &fakeStore{proxies: []store.Proxy{{ID: 1}, {ID: 2}}}
	pool := New(fs)
	require.NoError(t, pool.Load(context.Background()))
	assert.Equal(t, 2, pool.Len())
}
