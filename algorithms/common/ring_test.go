package common

import "testing"

func TestRingPushAndOverwrite(t *testing.T) {
	r := NewRing[int](3)

	r.Push(1)
	r.Push(2)
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}

	r.Push(3)
	r.Push(4) // overwrites 1

	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	want := []int{2, 3, 4}
	for i, w := range want {
		if got := r.At(i); got != w {
			t.Errorf("At(%d) = %d, want %d", i, got, w)
		}
	}
}

func TestRingAtOutOfRange(t *testing.T) {
	r := NewRing[int](2)
	r.Push(7)

	if got := r.At(1); got != 0 {
		t.Fatalf("At(1) = %d, want zero value", got)
	}
	if got := r.At(-1); got != 0 {
		t.Fatalf("At(-1) = %d, want zero value", got)
	}
}

func TestRingAppendLargerThanCapacity(t *testing.T) {
	r := NewRing[float64](4)
	r.Push(9)

	r.Append([]float64{1, 2, 3, 4, 5, 6})

	if r.Len() != 4 {
		t.Fatalf("Len = %d, want 4", r.Len())
	}
	dst := make([]float64, 4)
	n := r.CopyTo(dst)
	if n != 4 {
		t.Fatalf("CopyTo = %d, want 4", n)
	}
	want := []float64{3, 4, 5, 6}
	for i, w := range want {
		if dst[i] != w {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], w)
		}
	}
}

func TestRingCopyToWrapped(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	dst := make([]int, 3)
	n := r.CopyTo(dst)
	if n != 3 {
		t.Fatalf("CopyTo = %d, want 3", n)
	}
	want := []int{3, 4, 5}
	for i, w := range want {
		if dst[i] != w {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], w)
		}
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Clear()

	if r.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", r.Len())
	}
	r.Push(5)
	if got := r.At(0); got != 5 {
		t.Fatalf("At(0) after Clear+Push = %d, want 5", got)
	}
}
