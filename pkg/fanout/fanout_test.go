package fanout

import (
	"testing"
	"time"

	"github.com/agentkube/clustercore/pkg/discovery"
)

func drain(t *testing.T, ch <-chan discovery.Event, n int) []discovery.Event {
	t.Helper()
	out := make([]discovery.Event, 0, n)
	for i := 0; i < n; i++ {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed early after %d events, wanted %d", len(out), n)
			}
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d/%d", len(out)+1, n)
		}
	}
	return out
}

func resource(kind string) discovery.DiscoveredResource {
	return discovery.DiscoveredResource{Group: "", Version: "v1", Kind: kind, Plural: kind + "s", Source: discovery.Builtin, Scope: discovery.ScopeNamespaced}
}

// TestLateSubscriberSeesHistoryThenLiveTail covers §4.5's "history ⧺
// live-tail, no gaps, no duplicates" invariant and §8's prefix-equal
// sequence property across subscribers attaching at different times.
func TestLateSubscriberSeesHistoryThenLiveTail(t *testing.T) {
	f := New()

	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})
	f.Publish(discovery.ResourceDiscovered{Resource: resource("Service")})

	lateCh, lateCancel := f.Subscribe()
	defer lateCancel()

	f.Publish(discovery.ResourceDiscovered{Resource: resource("ConfigMap")})

	got := drain(t, lateCh, 3)
	wantKinds := []string{"Pod", "Service", "ConfigMap"}
	for i, ev := range got {
		rd, ok := ev.(discovery.ResourceDiscovered)
		if !ok {
			t.Fatalf("event %d has unexpected type %T", i, ev)
		}
		if rd.Resource.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %q, want %q", i, rd.Resource.Kind, wantKinds[i])
		}
	}
}

// TestEarlySubscriberSeesSameSequenceAsLateOne covers §8's "prefix-equal
// sequence" property for two subscribers attaching at different moments.
func TestEarlySubscriberSeesSameSequenceAsLateOne(t *testing.T) {
	f := New()

	earlyCh, earlyCancel := f.Subscribe()
	defer earlyCancel()

	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})

	lateCh, lateCancel := f.Subscribe()
	defer lateCancel()

	f.Publish(discovery.ResourceDiscovered{Resource: resource("Service")})
	f.Publish(discovery.Completed{Discovery: nil})

	early := drain(t, earlyCh, 3)
	late := drain(t, lateCh, 3)

	// The late subscriber (attached after Pod) gets Pod replayed from the
	// history, then Service and Completed live, so its sequence must equal
	// the early subscriber's event for event.
	for i, ev := range late {
		earlyEquivalent := early[i]
		if kindOf(ev) != kindOf(earlyEquivalent) {
			t.Errorf("late[%d] = %v, early[%d] = %v, want equal", i, ev, i, earlyEquivalent)
		}
	}
}

func kindOf(ev discovery.Event) string {
	switch v := ev.(type) {
	case discovery.ResourceDiscovered:
		return "ResourceDiscovered:" + v.Resource.Kind
	case discovery.Completed:
		return "Completed"
	case discovery.Failed:
		return "Failed"
	default:
		return "?"
	}
}

// TestDuplicateResourceIsDeduplicatedByNaturalKey covers §4.5's
// natural-key dedup requirement for a ResourceDiscovered republished
// with an identical GVK/plural/scope/source tuple.
func TestDuplicateResourceIsDeduplicatedByNaturalKey(t *testing.T) {
	f := New()

	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})
	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})
	f.Publish(discovery.Completed{Discovery: nil})

	ch, cancel := f.Subscribe()
	defer cancel()

	got := drain(t, ch, 2)
	if _, ok := got[1].(discovery.Completed); !ok {
		t.Fatalf("second event = %v, want Completed (duplicate Pod should have been dropped)", got[1])
	}
}

// TestPublishAfterTerminalEventIsNoOp covers the "Publish after a
// terminal event is a no-op" rule: nothing observes an event published
// after Completed/Failed.
func TestPublishAfterTerminalEventIsNoOp(t *testing.T) {
	f := New()

	f.Publish(discovery.Completed{Discovery: nil})
	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})

	ch, cancel := f.Subscribe()
	defer cancel()

	got := drain(t, ch, 1)
	if _, ok := got[0].(discovery.Completed); !ok {
		t.Fatalf("got %v, want only the terminal Completed event", got[0])
	}
	if !f.Done() {
		t.Error("Done() should report true once a terminal event has been published")
	}
}

// TestSubscribeAfterDoneReplaysHistoryAndClosesImmediately covers §4.4.1's
// "Completed" case: a subscriber attaching after the run finished gets
// the full history synchronously and no live tail to wait on.
func TestSubscribeAfterDoneReplaysHistoryAndClosesImmediately(t *testing.T) {
	f := New()
	f.Publish(discovery.ResourceDiscovered{Resource: resource("Pod")})
	f.Publish(discovery.Completed{Discovery: nil})

	ch, cancel := f.Subscribe()
	defer cancel()

	got := drain(t, ch, 2)
	if _, ok := got[1].(discovery.Completed); !ok {
		t.Fatal("expected Completed as the final replayed event")
	}

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("channel should be closed after replaying a finished run's history")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("channel should already be closed, not still open")
	}
}
