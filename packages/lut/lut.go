// Package lut implements a two-level sparse lookup table over a dense
// integer index range.
//
// Indices are split into a bucket number (index >> 5) and a slot inside the
// bucket (index & 31). Every bucket carries a 32-bit bitmap of used slots,
// so enumeration jumps from one used slot to the next with bit scans and
// costs O(used elements + allocated buckets) regardless of the index range.
package lut

import (
	"fmt"
	"iter"
	"math/bits"
)

const (
	bucketBits = 5
	bucketSize = 1 << bucketBits
	bucketMask = bucketSize - 1
)

type bucket[T comparable] struct {
	used  uint32
	items []T // nil while used == 0
}

// LUT is a sparse array of T. a slot is used iff a non-zero value is stored
// in it. the zero LUT is empty and ready to use.
type LUT[T comparable] struct {
	buckets []bucket[T]
	top     int // highest used index + 1, 0 when empty
	count   int
}

// New returns an empty table.
func New[T comparable]() *LUT[T] {
	return &LUT[T]{}
}

func split(i int) (int, int) {
	return i >> bucketBits, i & bucketMask
}

// Get returns the value stored at i, or the zero value when i is unused.
func (l *LUT[T]) Get(i int) T {
	var zero T
	hi, lo := split(i)
	if i < 0 || hi >= len(l.buckets) {
		return zero
	}
	b := &l.buckets[hi]
	if b.used&(1<<lo) == 0 {
		return zero
	}
	return b.items[lo]
}

// IsUsed reports whether a non-zero value is stored at i.
func (l *LUT[T]) IsUsed(i int) bool {
	hi, lo := split(i)
	if i < 0 || hi >= len(l.buckets) {
		return false
	}
	return l.buckets[hi].used&(1<<lo) != 0
}

// Set stores v at i. storing the zero value clears the slot.
func (l *LUT[T]) Set(i int, v T) {
	if i < 0 {
		panic(fmt.Sprintf("lut: negative index %d", i))
	}
	var zero T
	hi, lo := split(i)
	bit := uint32(1) << lo

	if v == zero {
		if hi >= len(l.buckets) {
			return
		}
		b := &l.buckets[hi]
		if b.used&bit == 0 {
			return
		}
		b.used &^= bit
		b.items[lo] = zero
		l.count--
		if b.used == 0 {
			b.items = nil
		}
		if i == l.top-1 {
			l.shrinkTop(hi)
		}
		return
	}

	if hi >= len(l.buckets) {
		l.growBuckets(hi + 1)
	}
	b := &l.buckets[hi]
	if lo >= len(b.items) {
		b.reserve(lo + 1)
	}
	b.items[lo] = v
	if b.used&bit == 0 {
		b.used |= bit
		l.count++
	}
	if i >= l.top {
		l.top = i + 1
	}
}

// Swap exchanges the contents of i and j.
func (l *LUT[T]) Swap(i, j int) {
	vi, vj := l.Get(i), l.Get(j)
	l.Set(i, vj)
	l.Set(j, vi)
}

// IsEmpty reports whether no index is used.
func (l *LUT[T]) IsEmpty() bool { return l.count == 0 }

// Len returns the number of used indices.
func (l *LUT[T]) Len() int { return l.count }

// MaxUsedIndex returns the highest used index, or -1 when the table is empty.
func (l *LUT[T]) MaxUsedIndex() int { return l.top - 1 }

// Clear drops every value.
func (l *LUT[T]) Clear() {
	l.buckets = nil
	l.top = 0
	l.count = 0
}

// growBuckets doubles the bucket array until it holds n buckets.
func (l *LUT[T]) growBuckets(n int) {
	size := max(len(l.buckets), 1)
	for size < n {
		size <<= 1
	}
	buckets := make([]bucket[T], size)
	copy(buckets, l.buckets)
	l.buckets = buckets
}

// shrinkTop recomputes the maximum after the slot at top-1 was cleared. the
// owning bucket is checked first, older buckets are scanned only when it
// has no other used slot.
func (l *LUT[T]) shrinkTop(hi int) {
	for ; hi >= 0; hi-- {
		if used := l.buckets[hi].used; used != 0 {
			l.top = hi<<bucketBits + bits.Len32(used)
			return
		}
	}
	l.top = 0
}

// reserve sizes the bucket to the next power of two >= n.
func (b *bucket[T]) reserve(n int) {
	size := 1
	for size < n {
		size <<= 1
	}
	items := make([]T, size)
	copy(items, b.items)
	b.items = items
}

// Ascend yields the used indices in [start, end] in increasing order. the
// table is re-read on every step, so the caller may modify indices at or
// before the one just yielded.
func (l *LUT[T]) Ascend(start, end int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		i := max(start, 0)
		for i <= end && i < l.top {
			hi, lo := split(i)
			if hi >= len(l.buckets) {
				return
			}
			used := l.buckets[hi].used >> lo << lo
			if used == 0 {
				i = (hi + 1) << bucketBits
				continue
			}
			idx := hi<<bucketBits + bits.TrailingZeros32(used)
			if idx > end {
				return
			}
			if !yield(idx, l.buckets[hi].items[idx&bucketMask]) {
				return
			}
			i = idx + 1
		}
	}
}

// Descend yields the used indices in [start, end] in decreasing order. the
// table is re-read on every step, so the caller may modify indices at or
// after the one just yielded.
func (l *LUT[T]) Descend(start, end int) iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		start = max(start, 0)
		i := min(end, l.top-1)
		for i >= start {
			hi, lo := split(i)
			used := l.buckets[hi].used
			if lo < bucketMask {
				used &= uint32(1)<<(lo+1) - 1
			}
			if used == 0 {
				i = hi<<bucketBits - 1
				continue
			}
			idx := hi<<bucketBits + bits.Len32(used) - 1
			if idx < start {
				return
			}
			if !yield(idx, l.buckets[hi].items[idx&bucketMask]) {
				return
			}
			i = min(idx-1, l.top-1)
		}
	}
}

// All yields every used index in increasing order.
func (l *LUT[T]) All() iter.Seq2[int, T] {
	return l.Ascend(0, l.top-1)
}
