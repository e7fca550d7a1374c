package telemetry

import "testing"

func TestRegistryAccumulatesAndStores(t *testing.T) {
	registry := NewRegistry()
	registry.Add("hits", 2)
	registry.Add("hits", 3)
	registry.Store("gauge", 7)
	registry.Store("gauge", 4)

	if got := registry.Get("hits"); got != 5 {
		t.Fatalf("expected hits counter at 5, got %d", got)
	}
	if got := registry.Get("gauge"); got != 4 {
		t.Fatalf("expected the stored gauge overwritten to 4, got %d", got)
	}
	if got := registry.Get("absent"); got != 0 {
		t.Fatalf("expected unknown keys to read zero, got %d", got)
	}
}

func TestRegistrySnapshotIsSortedByKey(t *testing.T) {
	registry := NewRegistry()
	registry.Add("zulu", 1)
	registry.Add("alpha", 1)
	registry.Add("mike", 1)

	snapshot := registry.Snapshot()
	want := []string{"alpha", "mike", "zulu"}
	if len(snapshot) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(snapshot))
	}
	for i, key := range want {
		if snapshot[i].Key != key {
			t.Fatalf("expected sorted keys %v, got %s at %d", want, snapshot[i].Key, i)
		}
	}
}
