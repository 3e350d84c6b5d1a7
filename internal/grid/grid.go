// Package grid places class entries into the weekly day/hour cells.
//
// The grid is fixed: five day columns (Mon..Fri) and twelve hour rows
// (9..20). An entry occupies hour row h of its day column when
// startHour <= h < endHour. Hours outside the grid are never tested, so
// those parts of an entry are simply not shown, and an entry whose end
// hour is not after its start hour occupies no cell at all.
package grid

import (
	"utrcal/internal/model"
)

const (
	Days      = 5
	FirstHour = 9
	LastHour  = 20
	Rows      = LastHour - FirstHour + 1
)

// Hours returns the hour rows in display order.
func Hours() []int {
	hours := make([]int, 0, Rows)
	for h := FirstHour; h <= LastHour; h++ {
		hours = append(hours, h)
	}
	return hours
}

// Occupies reports whether entry covers the (day, hour) cell.
func Occupies(entry model.ClassEntry, day, hour int) bool {
	return entry.DayIndex() == day && entry.StartHour() <= hour && hour < entry.EndHour()
}

// EntriesAt returns the entries covering the (day, hour) cell in input
// order. Later entries are drawn on top of earlier ones.
func EntriesAt(entries []model.ClassEntry, day, hour int) []model.ClassEntry {
	var out []model.ClassEntry
	for _, e := range entries {
		if Occupies(e, day, hour) {
			out = append(out, e)
		}
	}
	return out
}

// Block is the rendered rectangle of one entry: anchored at the first hour
// row it occupies and spanning endHour-startHour rows.
type Block struct {
	Entry model.ClassEntry `json:"entry"`
	Day   int              `json:"day"`
	Hour  int              `json:"hour"`

	// Span is the full block height in rows. It is not clipped to the
	// grid, so an entry starting before FirstHour overhangs the bottom.
	Span int `json:"span"`
}

// Conflict names two entries drawn into at least one common cell.
type Conflict struct {
	A     model.ClassEntry `json:"a"`
	B     model.ClassEntry `json:"b"`
	Day   int              `json:"day"`
	Hours []int            `json:"hours"`
}

// Layout is a precomputed cell index over a snapshot of entries.
type Layout struct {
	entries []model.ClassEntry
	cells   [Days][Rows][]int
}

// Build indexes entries into the grid cells.
func Build(entries []model.ClassEntry) *Layout {
	l := &Layout{entries: append([]model.ClassEntry{}, entries...)}
	for i, e := range l.entries {
		day := e.DayIndex()
		if day < 0 || day >= Days {
			continue
		}
		for h := FirstHour; h <= LastHour; h++ {
			if Occupies(e, day, h) {
				l.cells[day][h-FirstHour] = append(l.cells[day][h-FirstHour], i)
			}
		}
	}
	return l
}

// At returns the entries in the (day, hour) cell; nil outside the grid.
func (l *Layout) At(day, hour int) []model.ClassEntry {
	if day < 0 || day >= Days || hour < FirstHour || hour > LastHour {
		return nil
	}
	idx := l.cells[day][hour-FirstHour]
	if len(idx) == 0 {
		return nil
	}
	out := make([]model.ClassEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, l.entries[i])
	}
	return out
}

// Blocks returns one block per entry visible in at least one cell, in
// entry order.
func (l *Layout) Blocks() []Block {
	blocks := make([]Block, 0, len(l.entries))
	for _, e := range l.entries {
		day := e.DayIndex()
		for h := FirstHour; h <= LastHour; h++ {
			if Occupies(e, day, h) {
				blocks = append(blocks, Block{
					Entry: e,
					Day:   day,
					Hour:  h,
					Span:  e.EndHour() - e.StartHour(),
				})
				break
			}
		}
	}
	return blocks
}

// Conflicts lists every pair of entries sharing a cell. Overlaps are
// allowed; this is a report, not a rejection.
func (l *Layout) Conflicts() []Conflict {
	type pair struct{ a, b int }
	shared := make(map[pair][]int)
	var order []pair

	for day := 0; day < Days; day++ {
		for row := 0; row < Rows; row++ {
			idx := l.cells[day][row]
			for i := 0; i < len(idx); i++ {
				for j := i + 1; j < len(idx); j++ {
					p := pair{idx[i], idx[j]}
					if _, ok := shared[p]; !ok {
						order = append(order, p)
					}
					shared[p] = append(shared[p], row+FirstHour)
				}
			}
		}
	}

	conflicts := make([]Conflict, 0, len(order))
	for _, p := range order {
		a := l.entries[p.a]
		conflicts = append(conflicts, Conflict{
			A:     a,
			B:     l.entries[p.b],
			Day:   a.DayIndex(),
			Hours: shared[p],
		})
	}
	return conflicts
}

// Entries returns the snapshot the layout was built from.
func (l *Layout) Entries() []model.ClassEntry {
	return append([]model.ClassEntry{}, l.entries...)
}
