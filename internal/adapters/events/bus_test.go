package events

import (
	"context"
	"errors"
	"testing"

	"github.com/hylla/sgc/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe("first", HandlerFunc(func(_ context.Context, e domain.Event) error {
		got = append(got, "first:"+string(e.Kind))
		return nil
	}))
	bus.Subscribe("second", HandlerFunc(func(_ context.Context, e domain.Event) error {
		got = append(got, "second:"+string(e.Kind))
		return nil
	}))
	bus.Subscribe("ignored", nil)

	require.NoError(t, bus.Publish(context.Background(), domain.Event{Kind: domain.EventCadastroSubmitted}))
	assert.Equal(t, []string{"first:cadastro.submitted", "second:cadastro.submitted"}, got)
}

func TestBusKeepsDeliveringAfterHandlerFailure(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	delivered := 0
	bus.Subscribe("broken", HandlerFunc(func(context.Context, domain.Event) error { return boom }))
	bus.Subscribe("healthy", HandlerFunc(func(context.Context, domain.Event) error {
		delivered++
		return nil
	}))

	err := bus.Publish(context.Background(), domain.Event{Kind: domain.EventMapSubmitted})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 1, delivered)
}

func TestBusWithoutSubscribersIsNoop(t *testing.T) {
	assert.NoError(t, NewBus().Publish(context.Background(), domain.Event{Kind: domain.EventProcessStarted}))
}
