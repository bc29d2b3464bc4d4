package session

import (
	"os"
	"path/filepath"
	"testing"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	assert.Empty(t, s.Token())
	assert.Empty(t, s.Username())

	require.NoError(t, s.Save("ada", "tok-1"))
	assert.Equal(t, "tok-1", s.Token())
	assert.Equal(t, "ada", s.Username())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", reopened.Token())

	require.NoError(t, s.Clear())
	require.NoError(t, s.Clear())
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Username())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Empty(t, s.Token())
}

func TestPrefsStore(t *testing.T) {
	a := test.NewTempApp(t)
	s := NewPrefsStore(a.Preferences())

	require.NoError(t, s.Save("grace", "tok-2"))
	assert.Equal(t, "grace", s.Username())
	assert.Equal(t, "tok-2", s.Token())

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Token())
	assert.Empty(t, s.Username())
}
