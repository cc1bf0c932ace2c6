package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sita/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUsesTimestampAndStaysUnique(t *testing.T) {
	cat, err := NewCatalog(t.TempDir())
	require.NoError(t, err)

	now := time.Date(2026, 3, 4, 5, 6, 7, 500, time.Local)
	first, err := cat.Create(now)
	require.NoError(t, err)
	second, err := cat.Create(now)
	require.NoError(t, err)

	assert.Equal(t, "session_20260304_050607.txt", first.Name)
	assert.Equal(t, "session_20260304_050607_2.txt", second.Name)
	assert.Equal(t, "20260304_050607_2", second.SessionID)
	assert.FileExists(t, first.Path)

	info, err := os.Stat(first.Path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestListMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	cat, err := NewCatalog(dir)
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local)
	for _, d := range []time.Duration{0, 2 * time.Hour, time.Hour} {
		_, err := cat.Create(base.Add(d))
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		_, err := cat.Create(base.Add(2 * time.Hour))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "logs"), 0o755))

	refs, err := cat.List()
	require.NoError(t, err)
	require.Len(t, refs, 13)
	assert.Equal(t, "session_20260101_140000_11.txt", refs[0].Name)
	assert.Equal(t, "session_20260101_140000_10.txt", refs[1].Name)
	assert.Equal(t, "session_20260101_140000.txt", refs[10].Name)
	assert.Equal(t, "session_20260101_130000.txt", refs[11].Name)
	assert.Equal(t, "session_20260101_120000.txt", refs[12].Name)
}

func TestResolve(t *testing.T) {
	cat, err := NewCatalog(t.TempDir())
	require.NoError(t, err)
	ref, err := cat.Create(time.Now())
	require.NoError(t, err)

	got, err := cat.Resolve(ref.Name)
	require.NoError(t, err)
	assert.Equal(t, ref.Path, got.Path)

	for _, bad := range []string{"../etc/passwd", "session_20260101_120000.txt", "notes.txt"} {
		_, err := cat.Resolve(bad)
		var nf *core.NotFoundError
		assert.True(t, errors.As(err, &nf), bad)
	}
}

func TestParseSessionName(t *testing.T) {
	_, ok := ParseSessionName("session_20260101_120000_1.txt")
	assert.False(t, ok)
	_, ok = ParseSessionName("session_2026.txt")
	assert.False(t, ok)

	ref, ok := ParseSessionName("session_20260101_120000_3.txt")
	require.True(t, ok)
	assert.Equal(t, 3, ref.Seq)
	assert.Equal(t, SessionName(ref.CreatedAt, ref.Seq), ref.Name)
}
