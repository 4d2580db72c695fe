package buffer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/livepen/internal/compose"
)

func TestParseLanguage(t *testing.T) {
	cases := map[string]Language{"html": HTML, "CSS": CSS, "js": JS, "JavaScript": JS, " js ": JS}
	for in, want := range cases {
		got, err := ParseLanguage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLanguage("ts")
	assert.True(t, errors.Is(err, ErrUnknownLanguage))
}

func TestSetNotifiesAndTicksClock(t *testing.T) {
	s := NewStore(compose.Source{HTML: "<p>a</p>"})

	var got []Change
	unsub := s.Subscribe(func(c Change) { got = append(got, c) })
	defer unsub()

	changed, err := s.Set(CSS, "p{color:red}")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Set(CSS, "p{color:red}")
	require.NoError(t, err)
	assert.False(t, changed, "identical content is not a change")

	require.Len(t, got, 1)
	assert.Equal(t, []Language{CSS}, got[0].Languages)
	assert.Equal(t, uint64(1), got[0].Clock)

	b, err := s.Get(CSS)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.LastModified)
	assert.Equal(t, compose.Source{HTML: "<p>a</p>", CSS: "p{color:red}"}, s.Snapshot())
}

func TestSetUnknownLanguage(t *testing.T) {
	s := NewStore(compose.Source{})
	_, err := s.Set(Language("ts"), "x")
	assert.ErrorIs(t, err, ErrUnknownLanguage)
	_, err = s.Apply(map[Language]string{"py": "x"})
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestApplySingleNotification(t *testing.T) {
	s := NewStore(compose.Source{HTML: "same"})
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	changed, err := s.Apply(map[Language]string{HTML: "same", CSS: "a{}", JS: "x()"})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, got, 1)
	assert.Equal(t, []Language{CSS, JS}, got[0].Languages)

	html, _ := s.Get(HTML)
	assert.Equal(t, uint64(0), html.LastModified)
}

func TestResetAlwaysNotifies(t *testing.T) {
	s := NewStore(compose.Source{HTML: "x"})
	var got []Change
	s.Subscribe(func(c Change) { got = append(got, c) })

	s.Reset(compose.Source{HTML: "x"})
	require.Len(t, got, 1)
	assert.True(t, got[0].Reset)
	assert.Len(t, got[0].Languages, 3)
}

func TestUnsubscribe(t *testing.T) {
	s := NewStore(compose.Source{})
	calls := 0
	unsub := s.Subscribe(func(Change) { calls++ })
	unsub()
	unsub()
	s.Set(JS, "x")
	assert.Equal(t, 0, calls)
}

func TestSnapshotNeverTorn(t *testing.T) {
	s := NewStore(compose.Source{HTML: "0", CSS: "0", JS: "0"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			v := string(rune('a' + i%26))
			s.Apply(map[Language]string{HTML: v, CSS: v, JS: v})
		}
	}()
	for i := 0; i < 200; i++ {
		snap := s.Snapshot()
		require.Equal(t, snap.HTML, snap.CSS)
		require.Equal(t, snap.CSS, snap.JS)
	}
	wg.Wait()
}
