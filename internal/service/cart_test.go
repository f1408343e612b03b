package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papegu/senegal-livres/internal/repository"
)

func TestCartApply(t *testing.T) {
	h := newHarness(t)
	cart := &Cart{Carts: h.store, Books: h.store}
	ctx := context.Background()
	h.store.SetCart(buyerID)

	got, err := cart.Apply(ctx, buyerID, "b1", "add")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, got)

	got, err = cart.Apply(ctx, buyerID, "b1", "ADD")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, got, "adding twice is a no-op")

	got, err = cart.Apply(ctx, buyerID, "b2", "add")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2"}, got)

	got, err = cart.Apply(ctx, buyerID, "b1", "remove")
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, got)

	got, err = cart.Apply(ctx, buyerID, "b1", "remove")
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, got, "removing an absent id is a no-op")

	got, err = cart.Get(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, got)
}

func TestCartApplyErrors(t *testing.T) {
	h := newHarness(t)
	cart := &Cart{Carts: h.store, Books: h.store}
	ctx := context.Background()

	_, err := cart.Apply(ctx, buyerID, "nope", "add")
	assert.ErrorIs(t, err, ErrUnknownBook)
	_, err = cart.Apply(ctx, buyerID, "b1", "toggle")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = cart.Apply(ctx, buyerID, " ", "add")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = cart.Apply(ctx, 404, "b1", "add")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
