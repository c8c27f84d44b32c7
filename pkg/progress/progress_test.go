package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Percent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		event    Event
		expected int
	}{
		{Event{Current: 0, Total: 4}, 0},
		{Event{Current: 1, Total: 4}, 25},
		{Event{Current: 4, Total: 4}, 100},
		{Event{Current: 5, Total: 4}, 100},
		{Event{Current: 0, Total: 0}, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.event.Percent())
	}
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var a, b []Event
	sink := Multi(
		SinkFunc(func(e Event) { a = append(a, e) }),
		nil,
		SinkFunc(func(e Event) { b = append(b, e) }),
	)
	sink.Progress(Event{Current: 1, Total: 2, Status: StatusProcessing})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0], b[0])
}

func TestChannel_KeepsNewestWhenFull(t *testing.T) {
	t.Parallel()

	c := NewChannel(2)
	for i := 1; i <= 5; i++ {
		c.Progress(Event{Current: i, Total: 5})
	}
	c.Close()

	var got []int
	for e := range c.Events() {
		got = append(got, e.Current)
	}
	assert.Equal(t, []int{4, 5}, got)
}

func TestOrDiscard(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		OrDiscard(nil).Progress(Event{})
	})
}
