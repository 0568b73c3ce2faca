package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordabot/recorda/store"
)

func TestFindOrCreateCustomer(t *testing.T) {
	ctx := context.Background()
	st := NewTestStore(ctx, t)

	first, err := st.FindOrCreateCustomer(ctx, "+59891234567")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.NotEmpty(t, first.UID)
	assert.Equal(t, "Cliente +59891234567", first.Name)

	second, err := st.FindOrCreateCustomer(ctx, "+59891234567")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := st.FindOrCreateCustomer(ctx, "+59899999999")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCreateAndListEvents(t *testing.T) {
	ctx := context.Background()
	st := NewTestStore(ctx, t)

	customer, err := st.FindOrCreateCustomer(ctx, "+59891234567")
	require.NoError(t, err)

	start := time.Date(2025, 6, 25, 16, 0, 0, 0, time.UTC).Unix()
	event, err := st.CreateEvent(ctx, &store.Event{
		CustomerID: customer.ID,
		Title:      "pagar el alquiler",
		StartTs:    start,
	})
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.NotEmpty(t, event.UID)

	// Past event, should be excluded from the upcoming query below.
	_, err = st.CreateEvent(ctx, &store.Event{
		CustomerID: customer.ID,
		Title:      "vencido",
		StartTs:    start - 86400,
	})
	require.NoError(t, err)

	upcoming, err := st.ListUpcomingEvents(ctx, start)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "pagar el alquiler", upcoming[0].Title)
	assert.Equal(t, "+59891234567", upcoming[0].CustomerPhone)
	assert.Equal(t, start, upcoming[0].StartTs)
}

func TestDeleteCustomerCascadesEvents(t *testing.T) {
	ctx := context.Background()
	st := NewTestStore(ctx, t)

	customer, err := st.FindOrCreateCustomer(ctx, "+59891234567")
	require.NoError(t, err)

	_, err = st.CreateEvent(ctx, &store.Event{
		CustomerID: customer.ID,
		Title:      "reunión",
		StartTs:    time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	require.NoError(t, st.DeleteCustomer(ctx, &store.DeleteCustomer{ID: customer.ID}))

	events, err := st.ListEvents(ctx, &store.FindEvent{CustomerID: &customer.ID})
	require.NoError(t, err)
	assert.Empty(t, events)
}
