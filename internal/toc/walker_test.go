package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(items []*Item) []string {
	var out []string
	_ = VisitItems(items, func(item *Item) error {
		out = append(out, item.Name)
		return nil
	})
	return out
}

func TestWalkItemsExpandsAndDrops(t *testing.T) {
	items := []*Item{
		{Name: "a", Items: []*Item{{Name: "a1"}, {Name: "drop"}}},
		{Name: "expand"},
		{Name: "b"},
	}
	out, err := WalkItems(items, func(item *Item) ([]*Item, error) {
		switch item.Name {
		case "drop":
			return nil, nil
		case "expand":
			return []*Item{{Name: "e1"}, {Name: "e2", Items: []*Item{{Name: "e2a"}}}}, nil
		}
		return keep(item), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a1", "e1", "e2", "e2a", "b"}, names(out))
}

func TestWalkItemsVisitsReplacementChildren(t *testing.T) {
	var seen []string
	items := []*Item{{Name: "orig", Items: []*Item{{Name: "old-child"}}}}
	_, err := WalkItems(items, func(item *Item) ([]*Item, error) {
		seen = append(seen, item.Name)
		if item.Name == "orig" {
			return []*Item{{Name: "new", Items: []*Item{{Name: "new-child"}}}}, nil
		}
		return keep(item), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"orig", "new-child"}, seen)
}

func TestWalkItemsNil(t *testing.T) {
	out, err := WalkItems(nil, func(item *Item) ([]*Item, error) { return keep(item), nil })
	require.NoError(t, err)
	assert.Nil(t, out)
}
