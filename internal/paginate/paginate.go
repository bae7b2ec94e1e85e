// Package paginate slices a list into fixed-size pages.
package paginate

// DefaultSize is the page size used when none is given.
const DefaultSize = 5

// Page is one slice of a list plus its navigation state.
type Page[T any] struct {
	Items   []T
	Index   int
	Size    int
	Total   int
	HasPrev bool
	HasNext bool
}

// Slice returns page index (zero-based) of items.
//
// The index is not clamped: a negative index or one past the last page
// yields no items, with HasPrev and HasNext computed by the same rules as
// for an in-range page. Callers generate navigation only from those flags.
func Slice[T any](items []T, index, size int) Page[T] {
	if size <= 0 {
		size = DefaultSize
	}

	// last is the index of the final page. Comparing against it instead of
	// multiplying index by size keeps huge indexes from overflowing.
	last := -1
	if len(items) > 0 {
		last = (len(items) - 1) / size
	}

	p := Page[T]{
		Index:   index,
		Size:    size,
		Total:   len(items),
		HasPrev: index > 0,
		HasNext: index < last,
	}
	if index < 0 || index > last {
		return p
	}

	start := index * size
	end := min(start+size, len(items))
	p.Items = items[start:end:end]
	return p
}

// Count returns the number of pages needed for Total items, at least one.
func (p Page[T]) Count() int {
	size := p.Size
	if size <= 0 {
		size = DefaultSize
	}
	if p.Total == 0 {
		return 1
	}
	return (p.Total-1)/size + 1
}
