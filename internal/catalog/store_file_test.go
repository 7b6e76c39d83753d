package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FileCatalog/internal/catalog"
)

func TestFileStore_ReadMissing(t *testing.T) {
	s := catalog.NewFileStore(filepath.Join(t.TempDir(), "products.json"))

	_, err := s.Read(context.Background())
	assert.ErrorIs(t, err, catalog.ErrNoDocument)
}

func TestFileStore_WriteReplacesDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	s := catalog.NewFileStore(path)

	require.NoError(t, s.Write(ctx, []byte("[1]")))
	require.NoError(t, s.Write(ctx, []byte("[2]")))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "[2]", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
	assert.Equal(t, "products.json", entries[0].Name())
}

func TestFileStore_WriteIntoMissingDirFails(t *testing.T) {
	ctx := context.Background()
	s := catalog.NewFileStore(filepath.Join(t.TempDir(), "nope", "products.json"))

	assert.Error(t, s.Write(ctx, []byte("[]")))
	assert.Error(t, s.Ping(ctx))
}

func TestFileStore_RepositoryOverFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.json")

	repo := catalog.NewRepository(catalog.NewFileStore(path))
	_, err := repo.Add(ctx, sample("C1"))
	require.NoError(t, err)

	reopened := catalog.NewRepository(catalog.NewFileStore(path))
	got := reopened.GetAll(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "C1", got[0].Code)
	assert.NoError(t, reopened.Ping(ctx))
}

func TestFileStore_CorruptFileReadsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	repo := catalog.NewRepository(catalog.NewFileStore(path))
	assert.Empty(t, repo.GetAll(ctx))
}
