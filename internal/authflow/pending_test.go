package authflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPendingRequest(t *testing.T) {
	p := NewPendingRequest(time.Minute)
	require.NotEmpty(t, p.State)
	require.NotEmpty(t, p.Nonce)
	require.NotEqual(t, p.State, p.Nonce)
	require.False(t, p.Expired())
}

func TestMemoryStore_TakeConsumes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := NewPendingRequest(time.Minute)
	require.NoError(t, s.Put(ctx, p))

	got, err := s.Take(ctx, p.State)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, p.Nonce, got.Nonce)

	// second redemption of the same state must miss
	got2, err := s.Take(ctx, p.State)
	require.NoError(t, err)
	require.Nil(t, got2)
}

func TestMemoryStore_UnknownState(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Take(context.Background(), "st-not-there")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryStore_Expired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	p := NewPendingRequest(-time.Second)
	require.NoError(t, s.Put(ctx, p))

	got, err := s.Take(ctx, p.State)
	require.NoError(t, err)
	require.Nil(t, got)
}
