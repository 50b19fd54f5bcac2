package buffer

import (
	"math/rand/v2"
	"reflect"
	"sync"
	"testing"
)

func TestWindow_AppendBelowCapacity(t *testing.T) {
	w := NewWindow[int](10)

	for i := 0; i < 5; i++ {
		w.Append(i)
	}

	if w.Len() != 5 {
		t.Errorf("Len() = %d, want 5", w.Len())
	}

	want := []int{0, 1, 2, 3, 4}
	if got := w.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow[string](3)

	for _, s := range []string{"A", "B", "C", "D"} {
		w.Append(s)
	}

	want := []string{"B", "C", "D"}
	if got := w.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot() = %v, want %v", got, want)
	}

	stats := w.Stats()
	if stats.TotalEvicted != 1 {
		t.Errorf("TotalEvicted = %d, want 1", stats.TotalEvicted)
	}
	if stats.TotalAppended != 4 {
		t.Errorf("TotalAppended = %d, want 4", stats.TotalAppended)
	}
}

func TestWindow_KeepsLastMaxPoints(t *testing.T) {
	tests := []struct {
		capacity int
		extra    int
	}{
		{1, 1},
		{3, 1},
		{3, 7},
		{100, 1},
		{100, 250},
	}

	for _, tt := range tests {
		w := NewWindow[int](tt.capacity)
		total := tt.capacity + tt.extra
		for i := 0; i < total; i++ {
			w.Append(i)
		}

		got := w.Snapshot()
		if len(got) != tt.capacity {
			t.Fatalf("cap=%d extra=%d: len = %d, want %d", tt.capacity, tt.extra, len(got), tt.capacity)
		}
		for i, v := range got {
			if want := tt.extra + i; v != want {
				t.Errorf("cap=%d extra=%d: Snapshot()[%d] = %d, want %d", tt.capacity, tt.extra, i, v, want)
			}
		}
	}
}

func TestWindow_LengthNeverExceedsCapacity(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for trial := 0; trial < 50; trial++ {
		capacity := 1 + r.IntN(20)
		w := NewWindow[int](capacity)
		for i := 0; i < r.IntN(200); i++ {
			w.Append(i)
			if w.Len() > capacity {
				t.Fatalf("Len() = %d exceeds capacity %d", w.Len(), capacity)
			}
		}
	}
}

func TestWindow_SnapshotIsCopy(t *testing.T) {
	w := NewWindow[int](3)
	w.Append(1)
	w.Append(2)

	snap := w.Snapshot()
	snap[0] = 99
	w.Append(3)

	if got := w.Snapshot(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Snapshot() = %v, want [1 2 3]", got)
	}
	if !reflect.DeepEqual(snap, []int{99, 2}) {
		t.Errorf("earlier snapshot changed to %v", snap)
	}
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow[int](3)
	for i := 0; i < 5; i++ {
		w.Append(i)
	}

	w.Clear()

	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
	if got := w.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() = %v, want empty", got)
	}
	if w.Cap() != 3 {
		t.Errorf("Cap() = %d, want 3", w.Cap())
	}

	w.Append(7)
	if got := w.Snapshot(); !reflect.DeepEqual(got, []int{7}) {
		t.Errorf("Snapshot() after clear = %v, want [7]", got)
	}
	if w.Stats().ClearCount != 1 {
		t.Errorf("ClearCount = %d, want 1", w.Stats().ClearCount)
	}
}

func TestWindow_Last(t *testing.T) {
	w := NewWindow[int](2)
	if _, ok := w.Last(); ok {
		t.Error("Last() on empty window returned ok")
	}

	w.Append(1)
	w.Append(2)
	w.Append(3)

	v, ok := w.Last()
	if !ok || v != 3 {
		t.Errorf("Last() = %d, %v, want 3, true", v, ok)
	}
}

func TestWindow_MinimumCapacity(t *testing.T) {
	w := NewWindow[int](0)
	if w.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", w.Cap())
	}
}

func TestWindow_ConcurrentReaders(t *testing.T) {
	w := NewWindow[int](50)

	var wg sync.WaitGroup
	done := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := w.Snapshot()
				for i := 1; i < len(snap); i++ {
					if snap[i] != snap[i-1]+1 {
						t.Errorf("snapshot out of order: %v", snap)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 10000; i++ {
		w.Append(i)
	}
	close(done)
	wg.Wait()
}
