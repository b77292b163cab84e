package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemStore_AppendAndList(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()
	procurationID := uuid.New()

	err := store.AppendEvent(ctx, procurationID, NewEvent(ActionInitiated, "procuration created", nil))
	require.NoError(t, err)
	err = store.AppendEvent(ctx, procurationID, NewEvent(ActionAuthenticate, "portal session opened", nil))
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, procurationID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionInitiated, events[0].Action)
	assert.Equal(t, ActionAuthenticate, events[1].Action)
}

func TestInMemStore_ListUnknownProcuration(t *testing.T) {
	store := NewInMemStore()

	events, err := store.ListEvents(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInMemStore_ConcurrentAppendsLoseNothing(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()
	procurationID := uuid.New()

	const writers = 20
	const eventsPerWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < eventsPerWriter; i++ {
				event := NewEvent(ActionQueryDebts, fmt.Sprintf("writer %d event %d", w, i), nil)
				_ = store.AppendEvent(ctx, procurationID, event)
			}
		}(w)
	}
	wg.Wait()

	events, err := store.ListEvents(ctx, procurationID)
	require.NoError(t, err)
	assert.Len(t, events, writers*eventsPerWriter)
}

func TestInMemStore_StoredEventsAreImmutable(t *testing.T) {
	store := NewInMemStore()
	ctx := context.Background()
	procurationID := uuid.New()

	details := map[string]string{"taxId": "123*****78"}
	err := store.AppendEvent(ctx, procurationID, NewEvent(ActionQueryDebts, "ok", details))
	require.NoError(t, err)

	// Mutating the original map or the returned events must not change the log.
	details["taxId"] = "tampered"

	events, err := store.ListEvents(ctx, procurationID)
	require.NoError(t, err)
	events[0].Details["taxId"] = "also tampered"

	again, err := store.ListEvents(ctx, procurationID)
	require.NoError(t, err)
	assert.Equal(t, "123*****78", again[0].Details["taxId"])
}

func TestMaskTaxID(t *testing.T) {
	assert.Equal(t, "123******89", MaskTaxID("12345678989"))
	assert.Equal(t, "*****", MaskTaxID("12345"))
	assert.Equal(t, "", MaskTaxID(""))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "***", MaskSecret("hunter2"))
}
