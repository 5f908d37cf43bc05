package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tcm-wellness-backend/internal/consult"
)

func TestFileSnapshotStore_RoundTrip(t *testing.T) {
	sc, err := consult.DefaultScript()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "state", "sessions.json")
	fs := NewFileSnapshotStore(path)

	sessions, err := fs.Read()
	require.NoError(t, err)
	assert.Nil(t, sessions)

	s := consult.NewSession("s1", sc, t0)
	_, err = s.SubmitText(sc, "头痛", t0)
	require.NoError(t, err)
	require.NoError(t, fs.Write([]*consult.Session{s}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := fs.Read()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "头痛", got[0].Complaint)
	assert.Equal(t, consult.PhaseQuestions, got[0].Phase)
	assert.True(t, got[0].UpdatedAt.Equal(t0))

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	got, err = fs.Read()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileSnapshotStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileSnapshotStore(path).Read()
	assert.Error(t, err)
}
