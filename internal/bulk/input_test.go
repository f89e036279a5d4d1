package bulk

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNames(t *testing.T) {
	in := "  Radiohead \n\nBjörk\nRadiohead\n\t\nPortishead\r\n"
	names, err := ReadNames(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"Radiohead", "Björk", "Portishead"}, names)
}

func TestReadNames_Empty(t *testing.T) {
	names, err := ReadNames(strings.NewReader("\n \n"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestReadMBIDs(t *testing.T) {
	in := "lidarr:a74b1b7f-71a5-4011-9441-d0b5e4122711\n" +
		"8bfac288-ccc5-448d-9573-c33ea2aa5c30\n" +
		"lidarr: a74b1b7f-71a5-4011-9441-d0b5e4122711\n" +
		"\n"
	mbids, err := ReadMBIDs(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"a74b1b7f-71a5-4011-9441-d0b5e4122711",
		"8bfac288-ccc5-448d-9573-c33ea2aa5c30",
	}, mbids)
}

func TestParseMBIDLine(t *testing.T) {
	assert.Equal(t, "abc", ParseMBIDLine("lidarr:abc"))
	assert.Equal(t, "abc", ParseMBIDLine("  abc  "))
	assert.Equal(t, "", ParseMBIDLine("lidarr:"))
}

func TestReadNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artists.txt")
	require.NoError(t, os.WriteFile(path, []byte("Radiohead\nMassive Attack\n"), 0o600))

	names, err := ReadNamesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Radiohead", "Massive Attack"}, names)

	_, err = ReadNamesFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteNamesFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "artists.txt")
	require.NoError(t, WriteNamesFile(path, []string{"Björk", " ", "Radiohead "}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Björk\nRadiohead\n", string(data))

	names, err := ReadNamesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Björk", "Radiohead"}, names)
}

func TestTruncate(t *testing.T) {
	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, Truncate(items, 2))
	assert.Equal(t, items, Truncate(items, 0))
	assert.Equal(t, items, Truncate(items, -1))
	assert.Equal(t, items, Truncate(items, 10))
}
