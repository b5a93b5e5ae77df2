package state

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	addrB = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

func TestStateAppendOnly(t *testing.T) {
	st := New()
	require.False(t, st.Has(V3CoreFactory))
	require.NoError(t, st.Set(V3CoreFactory, addrA))
	require.ErrorIs(t, st.Set(V3CoreFactory, addrB), ErrKeyAlreadySet)

	got, ok := st.Get(V3CoreFactory)
	require.True(t, ok)
	require.Equal(t, addrA, got)

	require.ErrorIs(t, st.Set(Key("somethingElse"), addrA), ErrUnknownKey)
}

func TestStateSnapshot(t *testing.T) {
	st := New()
	require.NoError(t, st.Set(V3CoreFactory, addrA))
	snap := st.Snapshot()
	require.NoError(t, st.Set(Multicall2, addrB))

	require.Equal(t, 1, snap.Len())
	require.False(t, snap.Has(Multicall2))
	require.Equal(t, 2, st.Len())
}

func TestStateEntriesOrdered(t *testing.T) {
	st := New()
	require.NoError(t, st.Set(UniversalRouter, addrB))
	require.NoError(t, st.Set(V3CoreFactory, addrA))
	require.Equal(t, []Entry{
		{Key: V3CoreFactory, Address: addrA},
		{Key: UniversalRouter, Address: addrB},
	}, st.Entries())
}

func TestStateJSON(t *testing.T) {
	st := New()
	require.NoError(t, st.Set(V3CoreFactory, addrA))
	require.NoError(t, st.Set(SwapRouter02, addrB))

	data, err := json.Marshal(st)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"v3CoreFactoryAddress": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"swapRouter02": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	}`, string(data))

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))
	require.Equal(t, st.Entries(), decoded.Entries())

	t.Run("lowercase accepted", func(t *testing.T) {
		decoded := New()
		require.NoError(t, json.Unmarshal([]byte(`{"multicall2Address":"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"}`), decoded))
		got, _ := decoded.Get(Multicall2)
		require.Equal(t, addrA, got)
	})

	t.Run("bad checksum rejected", func(t *testing.T) {
		err := json.Unmarshal([]byte(`{"multicall2Address":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"}`), New())
		require.ErrorContains(t, err, "bad address checksum")
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		err := json.Unmarshal([]byte(`{"v4PoolManagerAddress":"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}`), New())
		require.ErrorIs(t, err, ErrUnknownKey)
	})
}

func TestStore(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/deploy/state.json")

	exists, err := store.Exists()
	require.NoError(t, err)
	require.False(t, exists)

	st, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, 0, st.Len())

	require.NoError(t, st.Set(V3CoreFactory, addrA))
	require.NoError(t, store.Write(st))
	require.NoError(t, st.Set(Multicall2, addrB))
	require.NoError(t, store.Write(st))

	exists, err = store.Exists()
	require.NoError(t, err)
	require.True(t, exists)

	tmpExists, err := afero.Exists(fs, "/deploy/state.json.tmp")
	require.NoError(t, err)
	require.False(t, tmpExists)

	read, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, st.Entries(), read.Entries())

	require.NoError(t, afero.WriteFile(fs, "/deploy/state.json", []byte("{not json"), 0o644))
	_, err = store.Read()
	require.ErrorContains(t, err, "failed to decode state file")
}

// syncFs records file syncs and renames in the order they happen.
type syncFs struct {
	afero.Fs
	events []string
}

func (s *syncFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f, err := s.Fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &syncFile{File: f, fs: s}, nil
}

func (s *syncFs) Rename(oldname, newname string) error {
	s.events = append(s.events, "rename "+oldname)
	return s.Fs.Rename(oldname, newname)
}

type syncFile struct {
	afero.File
	fs *syncFs
}

func (f *syncFile) Sync() error {
	f.fs.events = append(f.fs.events, "sync "+f.Name())
	return f.File.Sync()
}

func TestStoreSyncsBeforeRename(t *testing.T) {
	fs := &syncFs{Fs: afero.NewMemMapFs()}
	store := NewStore(fs, "/deploy/state.json")
	st := New()
	require.NoError(t, st.Set(V3CoreFactory, addrA))
	require.NoError(t, store.Write(st))

	require.Equal(t, []string{
		"sync /deploy/state.json.tmp",
		"rename /deploy/state.json.tmp",
	}, fs.events)
	_, err := fs.Stat("/deploy/state.json.tmp")
	require.ErrorIs(t, err, os.ErrNotExist)

	got, err := store.Read()
	require.NoError(t, err)
	require.Equal(t, st.Entries(), got.Entries())
}
