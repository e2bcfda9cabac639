package sessions

import (
	"testing"

	"github.com/Unity-Technologies/multiplay-examples/simple-session-go/pkg/online"
	"github.com/stretchr/testify/require"
)

func TestDelegate_Broadcast(t *testing.T) {
	t.Parallel()
	var (
		d   Delegate[int]
		got []string
	)

	d.Broadcast(0)

	first := d.Add(func(v int) { got = append(got, "first") })
	d.Add(func(v int) { got = append(got, "second") })
	d.Add(func(v int) {
		got = append(got, "third")
		d.Remove(first)
	})

	d.Broadcast(1)
	require.Equal(t, []string{"first", "second", "third"}, got)

	got = nil
	d.Broadcast(2)
	require.Equal(t, []string{"second", "third"}, got)

	d.Remove(first)
	d.Remove(Handle(99))
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	var r registry

	_, ok := r.add(&online.NamedSession{Name: "a", Hosting: true})
	require.True(t, ok)
	_, ok = r.add(&online.NamedSession{Name: "b"})
	require.True(t, ok)
	_, ok = r.add(&online.NamedSession{Name: "a"})
	require.False(t, ok)
	require.Equal(t, 2, r.len())

	require.True(t, r.update("b", func(s *online.NamedSession) {
		s.RegisteredPlayers = append(s.RegisteredPlayers, online.NewUserID(1))
	}))
	require.False(t, r.update("c", func(*online.NamedSession) { t.Error("updated a missing session") }))

	b, ok := r.get("b")
	require.True(t, ok)
	b.RegisteredPlayers[0] = online.InvalidID

	b, _ = r.get("b")
	require.Equal(t, []online.ID{online.NewUserID(1)}, b.RegisteredPlayers, "get returns a copy")

	require.Equal(t, []string{"a", "b"}, r.names(nil))
	require.Equal(t, []string{"a"}, r.names(func(s *online.NamedSession) bool { return s.Hosting }))

	require.True(t, r.remove("a"))
	require.False(t, r.remove("a"))
	require.False(t, r.exists("a"))
	require.Len(t, r.snapshot(), 1)
}

func TestRegistry_Generations(t *testing.T) {
	t.Parallel()
	var r registry

	first, ok := r.add(&online.NamedSession{Name: "g", State: online.Creating})
	require.True(t, ok)
	require.True(t, r.remove("g"))

	second, ok := r.add(&online.NamedSession{Name: "g", State: online.Creating})
	require.True(t, ok)
	require.NotEqual(t, first, second)

	gen, ok := r.generation("g")
	require.True(t, ok)
	require.Equal(t, second, gen)

	require.False(t, r.updateGen("g", first, func(*online.NamedSession) { t.Error("updated a stale generation") }))
	require.False(t, r.removeGen("g", first))
	require.True(t, r.exists("g"))

	require.True(t, r.updateGen("g", second, func(s *online.NamedSession) { s.State = online.Pending }))
	s, _ := r.get("g")
	require.Equal(t, online.Pending, s.State)

	require.True(t, r.removeGen("g", second))
	require.False(t, r.exists("g"))
}
