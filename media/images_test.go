package media

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-order-engine/apperror"
)

func TestStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	s, err := NewStore(dir, "http://localhost:8080/", "static/images")
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	url, err := s.Save("My Burger.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/static/images/"), url)
	assert.True(t, strings.HasSuffix(url, "_My_Burger.png"), url)

	name := strings.TrimPrefix(url, "http://localhost:8080/static/images/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestStore_SaveRejectsBadType(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://x", "/img/")
	require.NoError(t, err)

	_, err = s.Save("notes.txt", strings.NewReader("hi"))
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = s.Save("noext", strings.NewReader("hi"))
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))
}

func TestStore_SaveRejectsOversize(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://x", "img")
	require.NoError(t, err)

	_, err = s.Save("big.jpg", bytes.NewReader(make([]byte, MaxImageBytes+1)))
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial upload is removed")
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a_b-c", sanitize("a b-c"))
	assert.Equal(t, "image", sanitize(""))
	assert.Equal(t, "image", sanitize("***"))
	assert.Equal(t, "tcpasswd", sanitize("étc/passwd"))
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, "http://x", "img")
	require.NoError(t, err)

	url, err := s.Save("dish.gif", strings.NewReader("gif"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(url))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, s.Delete(url), "already removed")
	assert.Equal(t, apperror.Validation, apperror.KindOf(s.Delete("http://elsewhere/img/a.png")))
	assert.Equal(t, apperror.Validation, apperror.KindOf(s.Delete("http://x/img/../secret.png")))
}
