package twofa

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractMethod(id, t, v string, created time.Time) Method {
	return Method{
		MethodData: MethodData{Type: t, Value: v},
		ID:         id,
		Secret:     "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
		CreatedAt:  created,
	}
}

// runRepositoryContract exercises the behaviour every MethodRepository shares
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) MethodRepository) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("empty list", func(t *testing.T) {
		repo := newRepo(t)
		methods, err := repo.ListMethods(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, methods)
		assert.Empty(t, methods)
	})

	t.Run("add keeps creation order and the secret", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", base)))
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("b", "sms", "+15550100", base.Add(time.Second))))
		require.NoError(t, repo.AddMethod(ctx, "u2", contractMethod("c", "email", "a@example.com", base)))

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, methods, 2)
		assert.Equal(t, "a", methods[0].ID)
		assert.Equal(t, "b", methods[1].ID)
		assert.Equal(t, "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP", methods[0].Secret)
		assert.False(t, methods[0].Enabled)
		assert.Nil(t, methods[0].LastUsedAt)
		assert.True(t, methods[0].CreatedAt.Equal(base))
	})

	t.Run("duplicate pair is rejected", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", base)))
		err := repo.AddMethod(ctx, "u1", contractMethod("b", "email", "a@example.com", base))
		assert.ErrorIs(t, err, ErrDuplicateMethod)

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, methods, 1)
	})

	t.Run("set enabled", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", base)))
		require.NoError(t, repo.SetEnabled(ctx, "u1", "a", true))

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, methods[0].Enabled)

		require.NoError(t, repo.SetEnabled(ctx, "u1", "a", false))
		methods, err = repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, methods[0].Enabled)

		assert.ErrorIs(t, repo.SetEnabled(ctx, "u1", "missing", true), ErrMethodNotFound)
		assert.ErrorIs(t, repo.SetEnabled(ctx, "u2", "a", true), ErrMethodNotFound, "methods are scoped by user")
	})

	t.Run("touch last used", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", base)))
		at := base.Add(time.Hour)
		require.NoError(t, repo.TouchLastUsed(ctx, "u1", "a", at))

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, methods[0].LastUsedAt)
		assert.True(t, methods[0].LastUsedAt.Equal(at))

		assert.ErrorIs(t, repo.TouchLastUsed(ctx, "u1", "missing", at), ErrMethodNotFound)
	})

	t.Run("remove frees the pair", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("a", "email", "a@example.com", base)))
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("b", "sms", "+15550100", base.Add(time.Second))))
		require.NoError(t, repo.RemoveMethod(ctx, "u1", "a"))

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, methods, 1)
		assert.Equal(t, "b", methods[0].ID)

		assert.ErrorIs(t, repo.RemoveMethod(ctx, "u1", "a"), ErrMethodNotFound)
		require.NoError(t, repo.AddMethod(ctx, "u1", contractMethod("c", "email", "a@example.com", base.Add(2*time.Second))))
	})

	t.Run("concurrent adds lose nothing", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m := contractMethod(fmt.Sprintf("id-%02d", i), "email", fmt.Sprintf("user%d@example.com", i), base.Add(time.Duration(i)*time.Millisecond))
				assert.NoError(t, repo.AddMethod(ctx, "u1", m))
			}(i)
		}
		wg.Wait()

		methods, err := repo.ListMethods(ctx, "u1")
		require.NoError(t, err)
		assert.Len(t, methods, 20)
	})

	t.Run("concurrent duplicate adds admit one", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := repo.AddMethod(ctx, "u1", contractMethod(fmt.Sprintf("dup-%d", i), "email", "same@example.com", base))
				if err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, ErrDuplicateMethod)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, succeeded)
	})
}
