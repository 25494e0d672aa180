package chacha20

import (
	"math"
	"testing"
)

const testWindowSize = 4096

func TestSequenceWindow_RejectsAnchor(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 1000)
	if w.Verify(1000) {
		t.Fatal("the anchor itself must always be rejected")
	}
	if w.Verify(999) {
		t.Fatal("numbers behind the anchor must be rejected")
	}
}

func TestSequenceWindow_AcceptsOnceThenRejectsDuplicate(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 1000)
	if !w.Verify(1001) {
		t.Fatal("expected start+1 to be accepted")
	}
	if w.Verify(1001) {
		t.Fatal("expected duplicate start+1 to be rejected")
	}
}

func TestSequenceWindow_OutOfOrderWithinWindow(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 0)
	for _, seq := range []int64{5, 3, 64, 1, 2} {
		if !w.Verify(seq) {
			t.Fatalf("expected %d to be accepted", seq)
		}
	}
	for _, seq := range []int64{5, 3, 64, 1, 2} {
		if w.Verify(seq) {
			t.Fatalf("expected duplicate %d to be rejected", seq)
		}
	}
	if w.Start() != 0 {
		t.Fatalf("window must not slide within the first 64, start=%d", w.Start())
	}
}

func TestSequenceWindow_Start65SlidesByOne(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 100)
	if !w.Verify(165) {
		t.Fatal("expected start+65 to be accepted")
	}
	if w.Start() != 101 {
		t.Fatalf("expected anchor to slide by one to 101, got %d", w.Start())
	}

	ref := NewSequenceWindow(testWindowSize, 101)
	ref.Verify(165)
	if *w != *ref {
		t.Fatalf("expected window equal to one reinitialized at start+1: got %+v want %+v", *w, *ref)
	}
	if w.Verify(101) {
		t.Fatal("the new anchor must be rejected")
	}
	if !w.Verify(102) {
		t.Fatal("expected 102 to remain acceptable after the slide")
	}
}

func TestSequenceWindow_SlideKeepsSeenBits(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 0)
	w.Verify(60)
	if !w.Verify(70) {
		t.Fatal("expected 70 to be accepted")
	}
	if w.Verify(60) {
		t.Fatal("60 was seen before the slide and must still be rejected")
	}
	if !w.Verify(61) {
		t.Fatal("61 was never seen and is still inside the window")
	}
	if w.Verify(6) {
		t.Fatal("6 fell behind the anchor and must be rejected")
	}
}

func TestSequenceWindow_LargeSlideClearsMask(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 0)
	for seq := int64(1); seq <= 64; seq++ {
		w.Verify(seq)
	}
	if w.Quality() != 64 {
		t.Fatalf("expected full quality, got %d", w.Quality())
	}
	if !w.Verify(1000) {
		t.Fatal("expected jump inside WindowSize to be accepted")
	}
	if w.Quality() != 1 {
		t.Fatalf("expected mask cleared except the new bit, got quality %d", w.Quality())
	}
	if w.Start() != 1000-SequenceBits {
		t.Fatalf("expected start %d, got %d", 1000-SequenceBits, w.Start())
	}
}

func TestSequenceWindow_RejectsBeyondWindowSize(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 10)
	if w.Verify(10 + testWindowSize) {
		t.Fatal("start+WindowSize must be rejected")
	}
	if w.Verify(10 + testWindowSize + 1) {
		t.Fatal("beyond WindowSize must be rejected")
	}
	if w.Verify(math.MaxInt64) {
		t.Fatal("huge jump must be rejected")
	}
	if w.Start() != 10 || w.Quality() != 0 {
		t.Fatal("rejected numbers must not change the window")
	}
	if !w.Verify(10 + testWindowSize - 1) {
		t.Fatal("start+WindowSize-1 must be accepted")
	}
}

func TestSequenceWindow_Quality(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 0)
	accepted := 0
	for seq := int64(1); seq <= 64; seq += 3 {
		if w.Verify(seq) {
			accepted++
		}
	}
	if got := w.Quality(); got != accepted {
		t.Fatalf("expected quality %d, got %d", accepted, got)
	}
}

func TestSequenceWindow_InitResets(t *testing.T) {
	w := NewSequenceWindow(testWindowSize, 0)
	w.Verify(1)
	w.Verify(2)
	w.Init(50)
	if w.Quality() != 0 || w.Start() != 50 {
		t.Fatalf("expected clean window at 50, got start=%d quality=%d", w.Start(), w.Quality())
	}
	if !w.Verify(51) {
		t.Fatal("expected 51 accepted after Init")
	}
}
