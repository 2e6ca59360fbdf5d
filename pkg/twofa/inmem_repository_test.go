package twofa

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryMethodRepository_Contract(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) MethodRepository {
		return NewInMemoryMethodRepository()
	})
}

func TestInMemoryMethodRepository_ListIsACopy(t *testing.T) {
	repo := NewInMemoryMethodRepository()
	ctx := context.Background()
	require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", time.Now())))

	methods, err := repo.ListMethods(ctx, "u1")
	require.NoError(t, err)
	methods[0].Enabled = true
	methods[0].Value = "changed"

	again, err := repo.ListMethods(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, again[0].Enabled)
	assert.Equal(t, "a@example.com", again[0].Value)
}

func TestNewMethodRepository(t *testing.T) {
	repo, err := NewMethodRepository("inmem", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryMethodRepository{}, repo)

	repo, err = NewMethodRepository("file", RepositoryConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileMethodRepository{}, repo)

	_, err = NewMethodRepository("file", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewMethodRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewMethodRepository("redis", RepositoryConfig{})
	assert.Error(t, err)
	_, err = NewMethodRepository("mongo", RepositoryConfig{})
	assert.Error(t, err)
}
