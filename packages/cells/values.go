package cells

import (
	"iter"

	"github.com/vogtb/go-spreadsheet/packages/grid"
	"github.com/vogtb/go-spreadsheet/packages/sparse"
	"github.com/vogtb/go-spreadsheet/packages/sst"
)

// slot is the stored form of a Value: text payloads are replaced by their
// shared text table id. the zero slot is a blank, unused cell.
type slot struct {
	kind Kind
	id   int32
	num  float64
}

// ValueSlice is a content slice of cell values whose text lives in a shared
// text table. every stored text slot holds exactly one reference.
type ValueSlice struct {
	slots *sparse.Slice[slot]
	text  *sst.Table
}

// NewValueSlice creates an empty slice interning text in table.
func NewValueSlice(table *sst.Table) *ValueSlice {
	return &ValueSlice{slots: sparse.New[slot](), text: table}
}

// Table returns the shared text table of the slice.
func (vs *ValueSlice) Table() *sst.Table { return vs.text }

func (vs *ValueSlice) load(s slot) Value {
	if s.kind != KindText {
		return Value{kind: s.kind, num: s.num}
	}
	t, _ := vs.text.Entry(int(s.id))
	return Value{kind: KindText, str: t.String(), rich: t.Rich, inline: vs.text.IsInline(int(s.id))}
}

// Get returns the value at p, blank when unused.
func (vs *ValueSlice) Get(p grid.Point) Value {
	return vs.load(vs.slots.Get(p))
}

// TextID returns the shared text id of a text cell.
func (vs *ValueSlice) TextID(p grid.Point) (int, bool) {
	s := vs.slots.Get(p)
	if s.kind != KindText {
		return 0, false
	}
	return int(s.id), true
}

// Set stores v at p. a blank value clears the point. the new text is
// referenced before the old text is released, so rewriting the same text
// never frees and re-allocates its entry.
func (vs *ValueSlice) Set(p grid.Point, v Value) {
	next := slot{kind: v.kind, num: v.num}
	if v.kind == KindText {
		next.id = int32(vs.text.IncreaseRef(v.text(), v.inline))
	}
	if old := vs.slots.Get(p); old.kind == KindText {
		vs.text.DecreaseRef(int(old.id))
	}
	vs.slots.Set(p, next)
}

func (vs *ValueSlice) IsUsed(p grid.Point) bool { return vs.slots.IsUsed(p) }

func (vs *ValueSlice) IsEmpty() bool { return vs.slots.IsEmpty() }

func (vs *ValueSlice) Len() int { return vs.slots.Len() }

func (vs *ValueSlice) MaxRow() int { return vs.slots.MaxRow() }

func (vs *ValueSlice) MaxColumn() int { return vs.slots.MaxColumn() }

func (vs *ValueSlice) UsedRows() iter.Seq[int] { return vs.slots.UsedRows() }

func (vs *ValueSlice) UsedColumns() []int { return vs.slots.UsedColumns() }

// Ascend yields the used values of rect in row-major order.
func (vs *ValueSlice) Ascend(rect grid.Rect) iter.Seq2[grid.Point, Value] {
	return func(yield func(grid.Point, Value) bool) {
		for p, s := range vs.slots.Ascend(rect) {
			if !yield(p, vs.load(s)) {
				return
			}
		}
	}
}

// Descend yields the used values of rect in reverse row-major order.
func (vs *ValueSlice) Descend(rect grid.Rect) iter.Seq2[grid.Point, Value] {
	return func(yield func(grid.Point, Value) bool) {
		for p, s := range vs.slots.Descend(rect) {
			if !yield(p, vs.load(s)) {
				return
			}
		}
	}
}

// release drops the text references held inside rect. it must run before
// the slots themselves are discarded.
func (vs *ValueSlice) release(rect grid.Rect) {
	for _, s := range vs.slots.Ascend(rect) {
		if s.kind == KindText {
			vs.text.DecreaseRef(int(s.id))
		}
	}
}

func (vs *ValueSlice) Clear(rect grid.Rect) {
	vs.release(rect)
	vs.slots.Clear(rect)
}

func (vs *ValueSlice) DeleteAndShiftLeft(rect grid.Rect) {
	vs.release(rect)
	vs.slots.DeleteAndShiftLeft(rect)
}

func (vs *ValueSlice) DeleteAndShiftUp(rect grid.Rect) {
	vs.release(rect)
	vs.slots.DeleteAndShiftUp(rect)
}

func (vs *ValueSlice) InsertAndShiftRight(rect grid.Rect) {
	vs.release(sparse.PushedOutRight(rect))
	vs.slots.InsertAndShiftRight(rect)
}

func (vs *ValueSlice) InsertAndShiftDown(rect grid.Rect) {
	vs.release(sparse.PushedOutDown(rect))
	vs.slots.InsertAndShiftDown(rect)
}

// Swap exchanges two points. references move with their slots, so counts
// are unchanged.
func (vs *ValueSlice) Swap(p1, p2 grid.Point) { vs.slots.Swap(p1, p2) }
