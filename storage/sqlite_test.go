package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slvr-lang/slvr"
	. "github.com/slvr-lang/slvr/storage"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot() slvr.Snapshot {
	rt := slvr.NewRuntime(0)
	_ = rt.Write("accounts:a", slvr.Object{
		"balance": slvr.Integer(slvr.MaxInt128),
		"owner":   slvr.String("alice"),
	})
	_ = rt.Write("accounts:b", slvr.Object{"balance": slvr.Int(-3)})
	_ = rt.Write("cfg", slvr.List{slvr.Decimal(0.5), slvr.Null, slvr.True})
	_ = rt.Write("unit", slvr.Unit)
	return rt.Snapshot()
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	infos, err := s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	snap := testSnapshot()
	require.NoError(t, s.SaveSnapshot(ctx, "b", snap))
	require.NoError(t, s.SaveSnapshot(ctx, "a", snap[:1]))

	got, err := s.LoadSnapshot(ctx, "b")
	require.NoError(t, err)
	require.True(t, snap.Equal(got))
	require.Equal(t, snap, got)

	// saving again replaces the snapshot
	require.NoError(t, s.SaveSnapshot(ctx, "b", snap[2:]))
	got, err = s.LoadSnapshot(ctx, "b")
	require.NoError(t, err)
	require.True(t, snap[2:].Equal(got))

	infos, err = s.ListSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, "a", infos[0].Name)
	require.Equal(t, 1, infos[0].Entries)
	require.Equal(t, "b", infos[1].Name)
	require.Equal(t, 2, infos[1].Entries)
	require.False(t, infos[1].CreatedAt.IsZero())

	require.NoError(t, s.SaveSnapshot(ctx, "empty", slvr.Snapshot{}))
	got, err = s.LoadSnapshot(ctx, "empty")
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, s.DeleteSnapshot(ctx, "b"))
	_, err = s.LoadSnapshot(ctx, "b")
	require.True(t, errors.Is(err, ErrSnapshotNotFound))
	err = s.DeleteSnapshot(ctx, "b")
	require.True(t, errors.Is(err, ErrSnapshotNotFound))
	require.EqualError(t, err, "SnapshotNotFoundError: b")

	require.True(t, errors.Is(s.SaveSnapshot(ctx, "", snap),
		slvr.ErrInvalidArgument))
}

func TestSQLiteStoreInvalidValue(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	err := s.SaveSnapshot(ctx, "bad", slvr.Snapshot{
		{Key: "a", Value: slvr.Int(1)},
		{Key: "b", Value: nil},
	})
	require.Error(t, err)

	// the failed save is rolled back
	_, err = s.LoadSnapshot(ctx, "bad")
	require.True(t, errors.Is(err, ErrSnapshotNotFound))
}

func TestSQLiteStoreRuntime(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "state.db")
	s, err := Open(path)
	require.NoError(t, err)

	rt := slvr.NewRuntime(1_000_000)
	bc, err := slvr.Compile([]byte(`
	write "counter" "n" {v: 1}
	write "counter" "m" [1, 2]`), slvr.DefaultCompilerOptions)
	require.NoError(t, err)
	_, err = slvr.NewVM(bc, rt).Run()
	require.NoError(t, err)
	require.NoError(t, s.SaveRuntime(ctx, "main", rt))
	require.NoError(t, s.Close())

	// reopen and continue from the saved state
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rt2 := slvr.NewRuntime(1_000_000)
	ok, err := s.LoadRuntime(ctx, "main", rt2)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, rt.Snapshot().Equal(rt2.Snapshot()))

	bc, err = slvr.Compile([]byte(`
	let n = read "counter" "n"
	update "counter" "n" {v: n.v + 1}`), slvr.DefaultCompilerOptions)
	require.NoError(t, err)
	ret, err := slvr.NewVM(bc, rt2).Run()
	require.NoError(t, err)
	require.True(t, slvr.Object{"v": slvr.Int(2)}.Equal(ret))

	rt3 := slvr.NewRuntime(0)
	require.NoError(t, rt3.Write("keep", slvr.Int(1)))
	ok, err = s.LoadRuntime(ctx, "missing", rt3)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, rt3.Exists("keep"))
}
