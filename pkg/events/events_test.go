package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WrapsPayload(t *testing.T) {
	env, err := New(EventOrderCreated, "storefront-api", "order-1", OrderCreatedPayload{
		OrderID: "order-1",
		UserID:  "user-1",
		Items:   []ItemQty{{ProductID: "p1", Qty: 2}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventOrderCreated, env.EventType)
	assert.Equal(t, CurrentVersion, env.EventVersion)
	assert.Equal(t, "order-1", env.CorrelationID)
	assert.False(t, env.OccurredAt.IsZero())

	payload, err := UnwrapPayload[OrderCreatedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, "user-1", payload.UserID)
	assert.Equal(t, []ItemQty{{ProductID: "p1", Qty: 2}}, payload.Items)
}

func TestNew_RejectsUnencodablePayload(t *testing.T) {
	_, err := New(EventOrderCreated, "api", "x", make(chan int))
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Envelope{}))
}
