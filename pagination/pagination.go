// Package pagination computes the page sequence a pager renders: page numbers
// around the current page, the first and last page, and ellipsis markers for
// the gaps in between.
package pagination

import "strconv"

// Item is a page number (1-based) or one of the ellipsis sentinels.
type Item int

const (
	LeftEllipsis  Item = -1
	RightEllipsis Item = -2
)

// DefaultSiblings is the sibling count pagers use when none is given.
const DefaultSiblings = 1

// IsEllipsis reports whether the item is a gap marker rather than a page.
func (i Item) IsEllipsis() bool {
	return i == LeftEllipsis || i == RightEllipsis
}

// Page returns the page number, or 0 for an ellipsis.
func (i Item) Page() int {
	if i.IsEllipsis() {
		return 0
	}
	return int(i)
}

func (i Item) String() string {
	switch i {
	case LeftEllipsis:
		return "LEFT_ELLIPSIS"
	case RightEllipsis:
		return "RIGHT_ELLIPSIS"
	}
	return strconv.Itoa(int(i))
}

// Range returns the ordered, de-duplicated items for current out of total
// pages, showing siblings pages on each side of current.
func Range(current, total, siblings int) []Item {
	if total <= 0 {
		return nil
	}
	if siblings < 0 {
		siblings = 0
	}

	// first + last + current + two ellipses
	if siblings*2+5 >= total {
		return span(1, total)
	}

	left := max(current-siblings, 1)
	right := min(current+siblings, total)

	items := []Item{1}
	if left > 2 {
		items = append(items, LeftEllipsis)
	} else {
		items = append(items, span(2, left-1)...)
	}
	items = append(items, span(left, right)...)
	if right < total-1 {
		items = append(items, RightEllipsis)
	} else {
		items = append(items, span(right+1, total-1)...)
	}
	items = append(items, Item(total))

	return dedupe(items)
}

func span(from, to int) []Item {
	if to < from {
		return nil
	}
	out := make([]Item, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, Item(p))
	}
	return out
}

func dedupe(items []Item) []Item {
	seen := make(map[Item]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
