package toc

// ItemTransform maps one item to zero or more replacement items.
type ItemTransform func(item *Item) ([]*Item, error)

// WalkItems applies fn to every item depth-first in source order and returns
// the rebuilt list. Each returned item replaces the visited one, and the walk
// continues into the children of the returned items rather than those of the
// original, so a transform may splice in, drop or expand subtrees.
func WalkItems(items []*Item, fn ItemTransform) ([]*Item, error) {
	if items == nil {
		return nil, nil
	}
	out := make([]*Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		results, err := fn(item)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if r == nil {
				continue
			}
			if len(r.Items) > 0 {
				children, err := WalkItems(r.Items, fn)
				if err != nil {
					return nil, err
				}
				r.Items = children
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// VisitItems calls fn for every item depth-first without modifying the tree.
func VisitItems(items []*Item, fn func(item *Item) error) error {
	for _, item := range items {
		if item == nil {
			continue
		}
		if err := fn(item); err != nil {
			return err
		}
		if err := VisitItems(item.Items, fn); err != nil {
			return err
		}
	}
	return nil
}

func keep(item *Item) []*Item {
	return []*Item{item}
}
