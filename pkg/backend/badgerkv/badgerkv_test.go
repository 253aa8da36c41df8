package badgerkv_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/calvinalkan/echobuf/pkg/backend/badgerkv"
	"github.com/calvinalkan/echobuf/pkg/echobuf"
	"github.com/calvinalkan/echobuf/pkg/slotaddr"
)

func Test_DB_Returns_Stored_Value_When_Put_Then_Get(t *testing.T) {
	t.Parallel()

	db, err := badgerkv.Open(badgerkv.Options{InMemory: true, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err, "Open should succeed")

	t.Cleanup(func() { _ = db.Close() })

	addr := slotaddr.Derive("echo", []byte("A"), 1)

	_, ok, err := db.Get(addr)
	require.NoError(t, err)
	assert.False(t, ok, "Get should miss before Put")

	require.NoError(t, db.Put(context.Background(), addr, []byte("v1")))
	require.NoError(t, db.Put(context.Background(), addr, []byte("v2")))

	value, ok, err := db.Get(addr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), value, "Put should overwrite")
}

func Test_DB_Scans_Every_Record_When_Many_Stored(t *testing.T) {
	t.Parallel()

	db, err := badgerkv.Open(badgerkv.Options{InMemory: true})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	want := map[slotaddr.Address][]byte{}

	for seed := range uint64(10) {
		addr := slotaddr.Derive("echo", nil, seed)
		want[addr] = []byte{byte(seed)}
		require.NoError(t, db.Put(context.Background(), addr, want[addr]))
	}

	got := map[slotaddr.Address][]byte{}
	err = db.Scan(context.Background(), func(addr slotaddr.Address, value []byte) error {
		got[addr] = value

		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(want, got))
}

func Test_DB_Returns_ErrNoDir_When_Dir_Missing(t *testing.T) {
	t.Parallel()

	_, err := badgerkv.Open(badgerkv.Options{})
	require.ErrorIs(t, err, badgerkv.ErrNoDir)
}

func Test_Store_Restores_Records_When_Reopened_On_Badger_Dir(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	owner := []byte("A")

	db, err := badgerkv.Open(badgerkv.Options{Dir: dir, SyncWrites: true})
	require.NoError(t, err)

	store, err := echobuf.Open(ctx, echobuf.Options{Backend: db})
	require.NoError(t, err)

	_, err = store.Create(ctx, echobuf.NamespaceAuthority, owner, 7, 6)
	require.NoError(t, err)
	_, err = store.AuthorizedWrite(ctx, echobuf.NamespaceAuthority, owner, 7, []byte("hello!!"), owner)
	require.NoError(t, err)

	before, err := store.Records()
	require.NoError(t, err)
	require.NoError(t, store.Close(), "Close should close the Badger DB")

	db, err = badgerkv.Open(badgerkv.Options{Dir: dir})
	require.NoError(t, err, "reopening the directory should succeed after Close")

	store, err = echobuf.Open(ctx, echobuf.Options{Backend: db})
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	after, err := store.Records()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(before, after, cmpopts.EquateEmpty()))
	assert.Equal(t, []byte("hello!"), after[0].Data)
}
