package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: TypeCycleCompleted})
	b.Publish(Event{Type: TypeStateReset}) // dropped for a (buffer 1)

	e := <-a
	assert.Equal(t, TypeCycleCompleted, e.Type)
	assert.False(t, e.Time.IsZero())
	assert.Len(t, c, 2)

	unsubA()
	unsubA()
	_, ok := <-a
	require.False(t, ok)

	b.Publish(Event{Type: TypeSchedulerStart})
	assert.Len(t, c, 3)
}
