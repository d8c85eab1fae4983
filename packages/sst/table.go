// Package sst implements the shared text table: a workbook-wide intern table
// mapping cell text to a small integer id with reference counting and id
// reuse.
package sst

import (
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// Run is one formatted run of a rich text value.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Color     string // ARGB hex, empty for the default color
	Size      float64
	FontName  string
}

// RichText is an ordered list of runs.
type RichText struct {
	Runs []Run
}

// String returns the concatenated run text.
func (r *RichText) String() string {
	var b strings.Builder
	for _, run := range r.Runs {
		b.WriteString(run.Text)
	}
	return b.String()
}

// Text is the payload stored in the table: plain text, or rich text when Rich
// is set (Plain is ignored then).
type Text struct {
	Plain string
	Rich  *RichText
}

// Plain returns a plain text payload.
func Plain(s string) Text { return Text{Plain: s} }

// String returns the text without formatting.
func (t Text) String() string {
	if t.Rich != nil {
		return t.Rich.String()
	}
	return t.Plain
}

// key encodes the structural content of t. rich text runs are length
// prefixed so that no two different run lists share an encoding.
func (t Text) key(inline bool) string {
	var b strings.Builder
	if inline {
		b.WriteByte('i')
	} else {
		b.WriteByte('s')
	}
	if t.Rich == nil {
		b.WriteByte('p')
		b.WriteString(t.Plain)
		return b.String()
	}
	b.WriteByte('r')
	for _, run := range t.Rich.Runs {
		for _, field := range []string{
			run.Text,
			strconv.FormatBool(run.Bold),
			strconv.FormatBool(run.Italic),
			strconv.FormatBool(run.Underline),
			run.Color,
			strconv.FormatFloat(run.Size, 'g', -1, 64),
			run.FontName,
		} {
			b.WriteString(strconv.Itoa(len(field)))
			b.WriteByte(':')
			b.WriteString(field)
		}
	}
	return b.String()
}

type entry struct {
	text   Text
	key    string
	inline bool
	refs   int // 0 marks a free slot
}

// Table interns text with reference counts. ids of released entries are
// reused before new ones are appended.
type Table struct {
	entries []entry
	index   map[string]int // key -> id
	free    []int
	live    int
}

// New creates an empty table.
func New() *Table {
	return &Table{index: make(map[string]int)}
}

// IncreaseRef adds a reference to text and returns its id, allocating an
// entry when no equal text with the same inline flag exists.
func (t *Table) IncreaseRef(text Text, inline bool) int {
	k := text.key(inline)
	if id, ok := t.index[k]; ok {
		t.entries[id].refs++
		return id
	}

	var id int
	if n := len(t.free); n > 0 {
		id = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		id = len(t.entries)
		t.entries = append(t.entries, entry{})
	}
	if text.Rich != nil {
		// the table owns its runs; later edits by the caller must not
		// change a stored entry
		text.Rich = &RichText{Runs: slices.Clone(text.Rich.Runs)}
	}
	t.entries[id] = entry{text: text, key: k, inline: inline, refs: 1}
	t.index[k] = id
	t.live++
	return id
}

// DecreaseRef drops a reference to id. the entry is released when its count
// reaches zero. decreasing a free or unknown id panics: it means the
// caller's bookkeeping is broken.
func (t *Table) DecreaseRef(id int) {
	if id < 0 || id >= len(t.entries) || t.entries[id].refs == 0 {
		panic(fmt.Sprintf("sst: decrease of unreferenced id %d", id))
	}
	e := &t.entries[id]
	if e.refs > 1 {
		e.refs--
		return
	}
	delete(t.index, e.key)
	*e = entry{}
	t.free = append(t.free, id)
	t.live--
}

func (t *Table) lookup(id int) (entry, bool) {
	if id < 0 || id >= len(t.entries) || t.entries[id].refs == 0 {
		return entry{}, false
	}
	return t.entries[id], true
}

// Text returns the unformatted text of id.
func (t *Table) Text(id int) (string, bool) {
	e, ok := t.lookup(id)
	if !ok {
		return "", false
	}
	return e.text.String(), true
}

// RichText returns the rich text of id, or nil for plain or unknown entries.
func (t *Table) RichText(id int) *RichText {
	e, _ := t.lookup(id)
	return e.text.Rich
}

// Entry returns the stored payload of id.
func (t *Table) Entry(id int) (Text, bool) {
	e, ok := t.lookup(id)
	return e.text, ok
}

// IsInline reports whether id was interned as inline text.
func (t *Table) IsInline(id int) bool {
	e, _ := t.lookup(id)
	return e.inline
}

// RefCount returns the reference count of id, 0 when free.
func (t *Table) RefCount(id int) int {
	e, _ := t.lookup(id)
	return e.refs
}

// Len returns the number of live entries.
func (t *Table) Len() int { return t.live }

// TotalReferences returns the sum of all reference counts.
func (t *Table) TotalReferences() int {
	total := 0
	for _, e := range t.entries {
		total += e.refs
	}
	return total
}

// ConsecutiveIDMap maps every id to a gap-free position among the live
// shared entries, in id order. free and inline ids map to -1.
func (t *Table) ConsecutiveIDMap() []int {
	out := make([]int, len(t.entries))
	next := 0
	for id, e := range t.entries {
		if e.refs == 0 || e.inline {
			out[id] = -1
			continue
		}
		out[id] = next
		next++
	}
	return out
}

// All yields the live shared entries in id order.
func (t *Table) All() iter.Seq2[int, Text] {
	return func(yield func(int, Text) bool) {
		for id, e := range t.entries {
			if e.refs == 0 || e.inline {
				continue
			}
			if !yield(id, e.text) {
				return
			}
		}
	}
}
