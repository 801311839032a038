package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type titleChanged struct {
	Old, New string
}

type moved struct {
	X, Y int
}

type named interface{ Name() string }

type app struct{ name string }

func (a app) Name() string { return a.name }

func TestPublish_RoutesByExactType(t *testing.T) {
	b := New()
	var titles []titleChanged
	var moves []moved
	Subscribe(b, func(e titleChanged) { titles = append(titles, e) })
	Subscribe(b, func(e moved) { moves = append(moves, e) })

	n := Publish(b, titleChanged{Old: "Terminal", New: "Term"})
	assert.Equal(t, 1, n)
	assert.Equal(t, []titleChanged{{Old: "Terminal", New: "Term"}}, titles)
	assert.Empty(t, moves)
}

func TestPublish_NoInterfaceMatching(t *testing.T) {
	b := New()
	var viaInterface int
	Subscribe(b, func(named) { viaInterface++ })

	Publish(b, app{name: "Finder"})
	assert.Zero(t, viaInterface, "concrete type must not reach interface subscribers")

	Publish[named](b, app{name: "Finder"})
	assert.Equal(t, 1, viaInterface)
}

func TestPublish_RegistrationOrder(t *testing.T) {
	b := New()
	var order []int
	for i := range 5 {
		Subscribe(b, func(moved) { order = append(order, i) })
	}
	Publish(b, moved{})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPublish_NoHandlers(t *testing.T) {
	b := New()
	assert.Zero(t, Publish(b, moved{X: 1}))
}

func TestSubscribe_DuringPublishAppliesToLaterEvents(t *testing.T) {
	b := New()
	var late int
	Subscribe(b, func(moved) {
		Subscribe(b, func(moved) { late++ })
	})

	Publish(b, moved{})
	assert.Zero(t, late, "handler added during delivery must not see the current event")
	assert.Equal(t, 2, Len[moved](b))

	Publish(b, moved{})
	assert.Equal(t, 1, late)
}

func TestPublish_Reentrant(t *testing.T) {
	b := New()
	var got []string
	Subscribe(b, func(e moved) {
		got = append(got, "moved")
		Publish(b, titleChanged{New: "nested"})
	})
	Subscribe(b, func(e titleChanged) { got = append(got, "title:"+e.New) })

	Publish(b, moved{})
	assert.Equal(t, []string{"moved", "title:nested"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	var a, c int
	unsubA := Subscribe(b, func(moved) { a++ })
	Subscribe(b, func(moved) { c++ })

	Publish(b, moved{})
	unsubA()
	unsubA()
	Publish(b, moved{})

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, c)
	assert.Equal(t, 1, Len[moved](b))
}

func TestUnsubscribe_DuringPublishKeepsSnapshot(t *testing.T) {
	b := New()
	var second int
	var unsubSecond func()
	Subscribe(b, func(moved) { unsubSecond() })
	unsubSecond = Subscribe(b, func(moved) { second++ })

	Publish(b, moved{})
	require.Equal(t, 1, second, "snapshot taken before removal still delivers")

	Publish(b, moved{})
	assert.Equal(t, 1, second)
}
