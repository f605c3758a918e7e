package relay

import (
	"fmt"
	"sync"
	"testing"
)

func TestBindLastRegistrationWins(t *testing.T) {
	registry := NewRegistry()
	first := newClient("conn-1", nil)
	second := newClient("conn-2", nil)

	registry.Bind("alice", first)
	registry.Bind("alice", second)

	client, ok := registry.Resolve("alice")
	if !ok {
		t.Fatalf("expected alice to be bound")
	}
	if client != second {
		t.Fatalf("expected most recent binding to win")
	}
	if registry.Count() != 1 {
		t.Fatalf("expected one binding, got %d", registry.Count())
	}
}

func TestUnbindMissingIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Unbind("nobody")
	if registry.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Count())
	}
}

func TestUnbindHandleIgnoresStaleHandle(t *testing.T) {
	registry := NewRegistry()
	old := newClient("conn-1", nil)
	fresh := newClient("conn-2", nil)

	registry.Bind("alice", old)
	registry.Bind("alice", fresh)

	// The old channel closing must not evict the reconnected binding.
	registry.UnbindHandle("alice", old)
	if client, ok := registry.Resolve("alice"); !ok || client != fresh {
		t.Fatalf("stale unbind cleared a live binding")
	}

	registry.UnbindHandle("alice", fresh)
	if _, ok := registry.Resolve("alice"); ok {
		t.Fatalf("expected alice unbound after current handle closed")
	}
}

func TestConcurrentBindsForDistinctIdentities(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%d", i)
			client := newClient(identity, nil)
			registry.Bind(identity, client)
			if _, ok := registry.Resolve(identity); !ok {
				t.Errorf("identity %s missing after bind", identity)
			}
		}(i)
	}
	wg.Wait()

	if registry.Count() != 50 {
		t.Fatalf("expected 50 bindings, got %d", registry.Count())
	}
}
