package jit

import (
	"iter"
	"sync"
	"sync/atomic"
	"testing"
)

func TestWatcher_RescansOnQualifyingMutations(t *testing.T) {
	sheet := &memorySheet{}
	e := NewEngine(sheet, nil)
	defer e.Close()

	tree := newFakeTree("w-[1px]")
	e.Init(tree, nil)

	w := e.Watcher()
	if w == nil {
		t.Fatal("watcher must be installed for observable tree")
	}
	if w.State() != StateIdle {
		t.Fatalf("state = %v, want idle", w.State())
	}

	tree.add("c-[red]")
	if w.Scans() != 1 {
		t.Errorf("scans = %d, want 1", w.Scans())
	}
	if sheet.Len() != 2 {
		t.Errorf("sheet has %d rules, want 2", sheet.Len())
	}

	tree.emit(Mutation{Kind: MutationAttributes, Attr: "style"})
	if w.Scans() != 1 {
		t.Error("non class attribute change must not trigger rescan")
	}

	tree.elements[0]["class"] = "w-[1px] h-[3px]"
	tree.emit(Mutation{Kind: MutationAttributes, Attr: "title"}, Mutation{Kind: MutationAttributes, Attr: "class"})
	if w.Scans() != 2 {
		t.Errorf("scans = %d, want 2", w.Scans())
	}
	if sheet.Len() != 3 {
		t.Errorf("sheet has %d rules, want 3", sheet.Len())
	}
	if w.State() != StateIdle {
		t.Errorf("state = %v after scan, want idle", w.State())
	}
}

// burstTree delivers one more mutation while being scanned.
type burstTree struct {
	*fakeTree
	armed bool
}

func (t *burstTree) Elements() iter.Seq[Element] {
	if t.armed {
		t.armed = false
		t.add("h-[5px]")
	}
	return t.fakeTree.Elements()
}

func TestWatcher_MutationDuringScanRepeatsScan(t *testing.T) {
	sheet := &memorySheet{}
	e := NewEngine(sheet, nil)
	defer e.Close()

	tree := &burstTree{fakeTree: newFakeTree("w-[1px]")}
	e.Init(tree, nil)
	w := e.Watcher()

	tree.armed = true
	tree.add("c-[red]")

	if w.Scans() != 2 {
		t.Errorf("scans = %d, want 2", w.Scans())
	}
	if _, ok := e.Outcome("h-[5px]"); !ok {
		t.Error("token added during scan was not compiled")
	}
	if w.State() != StateIdle {
		t.Errorf("state = %v, want idle", w.State())
	}
}

func TestWatcher_StopAndReplace(t *testing.T) {
	e := NewEngine(&memorySheet{}, nil)

	tree := newFakeTree("w-[1px]")
	e.Init(tree, nil)
	first := e.Watcher()

	e.Init(tree, nil)
	second := e.Watcher()
	if first == second {
		t.Fatal("Init must install new watcher")
	}

	tree.add("c-[red]")
	if first.Scans() != 0 || second.Scans() != 1 {
		t.Errorf("scans = %d/%d, want 0/1", first.Scans(), second.Scans())
	}

	e.Close()
	if e.Watcher() != nil {
		t.Error("watcher must be removed on Close")
	}
	tree.add("h-[1px]")
	if second.Scans() != 1 {
		t.Error("stopped watcher must not rescan")
	}
	if len(tree.observers) != 0 {
		t.Errorf("%d observers left", len(tree.observers))
	}
}

func TestWatcher_IgnoresRemovals(t *testing.T) {
	sheet := &memorySheet{}
	e := NewEngine(sheet, nil)
	defer e.Close()

	tree := newFakeTree("w-[1px]", "c-[red]")
	e.Init(tree, nil)
	w := e.Watcher()

	tree.elements = tree.elements[:1]
	tree.emit(Mutation{Kind: MutationChildRemoved})
	if w.Scans() != 0 {
		t.Errorf("scans = %d after removal, want 0", w.Scans())
	}

	tree.elements = append(tree.elements, fakeElement{"class": "h-[2px]"})
	tree.emit(Mutation{Kind: MutationChildRemoved}, Mutation{Kind: MutationChildList})
	if w.Scans() != 1 || sheet.Len() != 3 {
		t.Errorf("scans = %d, rules = %d, want 1 and 3", w.Scans(), sheet.Len())
	}
}

// countingTree counts how many times its observers were unsubscribed.
type countingTree struct {
	*fakeTree
	unsubscribed atomic.Int32
}

func (t *countingTree) Observe(fn func([]Mutation)) func() {
	t.fakeTree.Observe(fn)
	return func() { t.unsubscribed.Add(1) }
}

func TestWatcher_ConcurrentStop(t *testing.T) {
	e := NewEngine(&memorySheet{}, nil)
	tree := &countingTree{fakeTree: newFakeTree("w-[1px]")}
	e.Init(tree, nil)
	w := e.Watcher()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				w.Stop()
			} else {
				e.Close()
			}
		}()
	}
	wg.Wait()

	if got := tree.unsubscribed.Load(); got != 1 {
		t.Errorf("unsubscribed %d times, want 1", got)
	}
	if e.Watcher() != nil {
		t.Error("watcher must be removed on Close")
	}
}

func TestWatchState_String(t *testing.T) {
	if StateIdle.String() != "idle" || StateScanScheduled.String() != "scan-scheduled" {
		t.Error("unexpected state names")
	}
}
