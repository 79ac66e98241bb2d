package hostmem

import (
	"testing"

	"github.com/slid-mod/slid/host"
)

func TestDeferFIFO(t *testing.T) {
	w := NewWorld()

	var order []int
	w.Defer(func() { order = append(order, 1) })
	w.Defer(func() { order = append(order, 2) })
	// A task queued inside a task runs on the next drain, not this one.
	w.Defer(func() {
		order = append(order, 3)
		w.Defer(func() { order = append(order, 4) })
	})

	w.RunDeferred()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order %v", order)
	}
	w.RunDeferred()
	if len(order) != 4 || order[3] != 4 {
		t.Fatalf("order %v", order)
	}
	w.RunDeferred()
	if len(order) != 4 {
		t.Fatal("drained queue ran again")
	}
}

func TestContainersSorted(t *testing.T) {
	w := NewWorld()
	w.AddContainer(host.FormID(0x30), "c")
	w.AddContainer(host.FormID(0x10), "a")
	w.AddContainer(host.FormID(0x20), "b")

	got := w.Containers()
	if len(got) != 3 || got[0] != 0x10 || got[1] != 0x20 || got[2] != 0x30 {
		t.Fatalf("containers %v", got)
	}
}
