package vault

import (
	"testing"

	"github.com/mkarlsen/vaultkit/internal/backend"
)

func TestEventBusSnapshotSemantics(t *testing.T) {
	bus := newEventBus()

	var lateCalls int
	var firstCalls int

	// The first listener registers a new listener mid-dispatch. The new
	// listener must NOT run for the trigger in flight, only for the next one.
	bus.on("custom", func(args ...any) {
		firstCalls++
		bus.on("custom", func(args ...any) {
			lateCalls++
		})
	})

	bus.trigger("custom")
	if firstCalls != 1 {
		t.Fatalf("first listener calls = %d, want 1", firstCalls)
	}
	if lateCalls != 0 {
		t.Fatalf("listener added during dispatch ran on the same trigger (calls = %d)", lateCalls)
	}

	bus.trigger("custom")
	if lateCalls != 1 {
		t.Errorf("listener added during first dispatch should run once on second trigger, got %d", lateCalls)
	}
}

func TestEventBusUnsubscribeDuringDispatch(t *testing.T) {
	bus := newEventBus()

	var aCalls, bCalls int
	var refB *EventRef

	bus.on("ev", func(args ...any) {
		aCalls++
		refB.Unsubscribe()
	})
	refB = bus.on("ev", func(args ...any) {
		bCalls++
	})

	// B was in the snapshot when the trigger started, so it still runs once.
	bus.trigger("ev")
	if aCalls != 1 || bCalls != 1 {
		t.Fatalf("calls = (%d, %d), want (1, 1)", aCalls, bCalls)
	}

	bus.trigger("ev")
	if bCalls != 1 {
		t.Errorf("unsubscribed listener ran again, calls = %d", bCalls)
	}
}

func TestEventBusPanicIsolation(t *testing.T) {
	bus := newEventBus()

	var survived bool
	bus.on("ev", func(args ...any) {
		panic("listener bug")
	})
	bus.on("ev", func(args ...any) {
		survived = true
	})

	bus.trigger("ev") // must not panic through

	if !survived {
		t.Error("a panicking listener prevented later listeners from running")
	}
}

func TestEventBusDuplicateRegistration(t *testing.T) {
	bus := newEventBus()

	var calls int
	fn := func(args ...any) { calls++ }

	ref1 := bus.on("ev", fn)
	bus.on("ev", fn)

	bus.trigger("ev")
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (duplicate registrations are independent)", calls)
	}

	// Unsubscribing one ref leaves the other registration intact.
	ref1.Unsubscribe()
	bus.trigger("ev")
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestEventBusArgsPassThrough(t *testing.T) {
	bus := newEventBus()

	var got []any
	bus.on("rename", func(args ...any) { got = args })

	f := newFile("a.md", backend.FileStat{})
	bus.trigger("rename", f, "old.md")

	if len(got) != 2 {
		t.Fatalf("args len = %d, want 2", len(got))
	}
	if got[0] != f || got[1] != "old.md" {
		t.Errorf("args = %v, want (file, old.md)", got)
	}
}
