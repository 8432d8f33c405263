// Package route implements the static routing table and its longest-prefix
// match lookup.
package route

import (
	"fmt"
	"math/bits"
	"sort"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/core/header"
)

// Entry is a single static route. Addresses use the representation returned
// by header.ParseAddr.
type Entry struct {
	Prefix    uint32
	Mask      uint32
	NextHop   uint32
	Interface int
}

// Valid reports whether the prefix has no bits outside the mask.
func (e Entry) Valid() bool {
	return e.Prefix&e.Mask == e.Prefix
}

// MaskLen returns the number of leading one bits in the mask.
func (e Entry) MaskLen() int {
	return bits.LeadingZeros32(^e.Mask)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s/%d via %s dev %d",
		header.FormatAddr(e.Prefix), e.MaskLen(), header.FormatAddr(e.NextHop), e.Interface)
}

// Table is an immutable routing table sorted descending by mask, then
// descending by prefix. Entries sharing a mask form a contiguous group whose
// prefixes are in descending order, which is what the lookup searches.
type Table struct {
	entries []Entry
	groups  []group
}

// group is the half-open range [start, end) of entries sharing mask.
type group struct {
	mask       uint32
	start, end int
}

// NewTable copies and sorts entries.
func NewTable(entries []Entry) *Table {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	var groups []group
	for i, e := range sorted {
		if len(groups) == 0 || groups[len(groups)-1].mask != e.Mask {
			groups = append(groups, group{mask: e.Mask, start: i})
		}
		groups[len(groups)-1].end = i + 1
	}
	return &Table{entries: sorted, groups: groups}
}

// less orders longer masks first and, for equal masks, larger prefixes first.
func less(a, b Entry) bool {
	if a.Mask != b.Mask {
		return a.Mask > b.Mask
	}
	return a.Prefix > b.Prefix
}

// Len returns the number of routes.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entries returns a copy of the routes in table order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// CheckInterfaces reports the first route whose interface index is not below n.
func (t *Table) CheckInterfaces(n int) error {
	for _, e := range t.entries {
		if e.Interface >= n {
			return fmt.Errorf("route %s uses interface %d but only %d configured: %w",
				e, e.Interface, n, core.ErrConfigInvalid)
		}
	}
	return nil
}

// LongestPrefixMatch returns the most specific route containing addr, that
// is the matching entry with the smallest index in table order.
//
// Mask groups are visited from the longest mask down; inside a group the
// prefixes are sorted descending so addr&mask is located with a descending
// binary search. A single binary search across groups is not enough: the
// comparison is only monotonic while the mask stays fixed.
func (t *Table) LongestPrefixMatch(addr uint32) (Entry, bool) {
	for _, g := range t.groups {
		if i, ok := t.search(g, addr&g.mask); ok {
			return t.entries[i], true
		}
	}
	return Entry{}, false
}

// search finds the first entry in g whose prefix equals masked.
func (t *Table) search(g group, masked uint32) (int, bool) {
	left, right := g.start, g.end-1
	found := -1
	for left <= right {
		mid := left + (right-left)/2
		prefix := t.entries[mid].Prefix

		switch {
		case masked == prefix:
			// Keep narrowing towards index start so duplicates resolve to
			// the first one loaded.
			found = mid
			right = mid - 1
		case masked > prefix:
			right = mid - 1
		default:
			left = mid + 1
		}
	}
	return found, found >= 0
}
