package bitset

import "testing"

func TestSetAndIsSetSpanMultipleWords(t *testing.T) {
	bs := New(100) // spans two 64-bit words

	for _, idx := range []uint64{0, 63, 64, 99} {
		bs.Set(idx)
		if !bs.IsSet(idx) {
			t.Errorf("bit %d: expected set", idx)
		}
	}

	if bs.IsSet(1) {
		t.Error("bit 1: expected unset, no Set call was made for it")
	}
}

func TestUnsetClearsOnlyTheTargetBit(t *testing.T) {
	bs := New(100)
	bs.Set(10)
	bs.Set(20)
	bs.Set(30)

	bs.Unset(20)

	if bs.IsSet(20) {
		t.Error("bit 20: expected unset after Unset")
	}
	if !bs.IsSet(10) || !bs.IsSet(30) {
		t.Error("bits 10 and 30: expected to remain set")
	}
}

func TestClearZeroesEveryWord(t *testing.T) {
	bs := New(128)
	bs.Set(5)
	bs.Set(70)

	bs.Clear()

	if bs.IsSet(5) || bs.IsSet(70) {
		t.Error("expected all bits unset after Clear")
	}
}

func TestSetFromCopiesWords(t *testing.T) {
	src := BitSet{0b1010, 0b1111}
	dst := BitSet{0, 0}

	dst.SetFrom(src)

	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("word %d: got %b, want %b", i, dst[i], src[i])
		}
	}
}

func TestSetFromPanicsOnSizeMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected SetFrom to panic on a word-count mismatch")
		}
	}()

	dst := BitSet{0}
	dst.SetFrom(BitSet{0b1010, 0b1111})
}
