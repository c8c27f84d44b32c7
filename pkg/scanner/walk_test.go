package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shishobooks/folio/internal/testgen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	root := testgen.TempDir(t, "walk-*")
	b := testgen.CreateSubDir(t, root, "b")
	a := testgen.CreateSubDir(t, root, "a")
	meta := testgen.CreateSubDir(t, root, metadataDir)

	testgen.WriteFile(t, root, "z.EPUB", []byte("x"))
	testgen.WriteFile(t, root, "readme.txt", []byte("x"))
	testgen.WriteFile(t, b, "two.pdf", []byte("x"))
	testgen.WriteFile(t, a, "one.epub", []byte("x"))
	testgen.WriteFile(t, meta, "log.epub", []byte("x"))

	files, problems, err := walk(root, normalizeExtensions([]string{"epub", ".PDF"}))
	require.NoError(t, err)
	assert.Empty(t, problems)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.path)
	}
	assert.Equal(t, []string{
		filepath.Join(root, "z.EPUB"),
		filepath.Join(a, "one.epub"),
		filepath.Join(b, "two.pdf"),
	}, paths)
	assert.Equal(t, int64(1), files[0].size)
}

func TestWalk_FollowsFileSymlinks(t *testing.T) {
	root := testgen.TempDir(t, "walk-*")
	outside := testgen.TempDir(t, "walk-outside-*")
	target := testgen.WriteFile(t, outside, "book.epub", []byte("content"))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.epub")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "dirlink")))

	files, _, err := walk(root, normalizeExtensions([]string{".epub"}))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "link.epub"), files[0].path)
	assert.Equal(t, int64(7), files[0].size)
}

func TestWalk_RootErrors(t *testing.T) {
	root := testgen.TempDir(t, "walk-*")
	file := testgen.WriteFile(t, root, "book.epub", []byte("x"))

	_, _, err := walk(filepath.Join(root, "missing"), normalizeExtensions([]string{".epub"}))
	assert.Error(t, err)

	_, _, err = walk(file, normalizeExtensions([]string{".epub"}))
	assert.Error(t, err)
}

func TestNormalizeExtensions(t *testing.T) {
	set := normalizeExtensions([]string{"EPUB", " .pdf ", ""})
	assert.Len(t, set, 2)
	assert.Contains(t, set, ".epub")
	assert.Contains(t, set, ".pdf")
}
