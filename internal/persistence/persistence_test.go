package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_MemoryIsDefault(t *testing.T) {
	p, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.Events.(*InMemoryEventStore)
	require.True(t, ok, "got %T", p.Events)
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	p, err := Open(ctx, Options{Backend: BackendSQLite})
	require.NoError(t, err)

	require.NoError(t, p.Events.AppendEvents(ctx, "run-1", sampleHistory()...))
	got, err := p.Events.ListEvents(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, len(sampleHistory()))

	require.NoError(t, p.Close())
	// A second close has nothing left to release.
	require.NoError(t, p.Close())
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "cassandra"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownBackend))
}
