package singular

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type obj struct {
	name    string
	payload string
}

func TestFindOrAddInternsOneInstance(t *testing.T) {
	db := New[string, *obj](cmp.Compare[string])

	first, added := db.FindOrAdd("eth0", func() *obj { return &obj{name: "eth0", payload: "a"} })
	require.True(t, added)

	second, added := db.FindOrAdd("eth0", func() *obj { return &obj{name: "eth0", payload: "b"} })
	require.False(t, added)

	assert.Same(t, first, second)
	assert.Equal(t, "a", second.payload)
	assert.Equal(t, 1, db.Len())
}

func TestReleaseOnlyRemovesStoredInstance(t *testing.T) {
	db := New[string, *obj](cmp.Compare[string])

	old, _ := db.FindOrAdd("k", func() *obj { return &obj{name: "old"} })
	require.True(t, db.Release("k", old))

	fresh, added := db.FindOrAdd("k", func() *obj { return &obj{name: "fresh"} })
	require.True(t, added)

	assert.False(t, db.Release("k", old))
	got, ok := db.Find("k")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestIterationIsOrderedByKey(t *testing.T) {
	db := New[int, *obj](cmp.Compare[int])
	for _, k := range []int{3, 1, 2} {
		db.FindOrAdd(k, func() *obj { return &obj{} })
	}

	var keys []int
	for k := range db.All() {
		keys = append(keys, k)
	}
	assert.Equal(t, []int{1, 2, 3}, keys)
	assert.Equal(t, []int{1, 2, 3}, db.Keys())
}

func TestIterationSkipsReleased(t *testing.T) {
	db := New[int, *obj](cmp.Compare[int])
	objs := map[int]*obj{}
	for _, k := range []int{1, 2, 3} {
		objs[k], _ = db.FindOrAdd(k, func() *obj { return &obj{} })
	}

	var seen []int
	for k := range db.All() {
		seen = append(seen, k)
		if k == 1 {
			db.Release(2, objs[2])
		}
	}
	assert.Equal(t, []int{1, 3}, seen)
}
