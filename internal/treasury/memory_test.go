package treasury

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/pkg/domain"
)

func TestInMemoryTreasury(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the seeded balance", func(t *testing.T) {
		funds := NewInMemory(500)
		balance, err := funds.AvailableBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(500), balance)
	})

	t.Run("release debits and records the movement", func(t *testing.T) {
		funds := NewInMemory(500)
		recipient := domain.NewPrincipal()

		require.NoError(t, funds.Release(ctx, recipient, 200))

		balance, err := funds.AvailableBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(300), balance)

		released := funds.Released()
		require.Len(t, released, 1)
		assert.Equal(t, recipient, released[0].Recipient)
		assert.Equal(t, int64(200), released[0].Amount)
	})

	t.Run("release refuses to overdraw", func(t *testing.T) {
		funds := NewInMemory(100)
		err := funds.Release(ctx, domain.NewPrincipal(), 101)
		require.ErrorIs(t, err, ErrReleaseFailed)

		balance, err := funds.AvailableBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance, "a refused release must not move funds")
		assert.Empty(t, funds.Released())
	})

	t.Run("release refuses non-positive amounts", func(t *testing.T) {
		funds := NewInMemory(100)
		require.ErrorIs(t, funds.Release(ctx, domain.NewPrincipal(), 0), ErrReleaseFailed)
		require.ErrorIs(t, funds.Release(ctx, domain.NewPrincipal(), -5), ErrReleaseFailed)
	})

	t.Run("deposit credits the balance", func(t *testing.T) {
		funds := NewInMemory(0)
		funds.Deposit(250)
		balance, err := funds.AvailableBalance(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(250), balance)
	})
}
