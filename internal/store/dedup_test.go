package store

import (
	"fmt"
	"testing"
)

func TestDedupStore_Basic(t *testing.T) {
	store := NewDedupStore[string](100, 0.001)

	if _, ok := store.Get("msg1"); ok {
		t.Error("Empty store should not have any entries")
	}
	if store.Size() != 0 {
		t.Errorf("Empty store size should be 0, got %d", store.Size())
	}

	store.Add("msg1", "result1")
	if got, ok := store.Get("msg1"); !ok || got != "result1" {
		t.Errorf("Get(msg1) = %q, %v; want result1", got, ok)
	}

	store.Add("msg1", "result2")
	if store.Size() != 1 {
		t.Errorf("Store size should still be 1 after re-adding, got %d", store.Size())
	}
	if got, _ := store.Get("msg1"); got != "result2" {
		t.Errorf("Get(msg1) = %q, want the latest value", got)
	}
}

func TestDedupStore_EmptyIDIgnored(t *testing.T) {
	store := NewDedupStore[int](10, 0.001)
	store.Add("", 1)
	if store.Size() != 0 {
		t.Errorf("Store size should be 0 after adding empty id, got %d", store.Size())
	}
}

func TestDedupStore_Observe(t *testing.T) {
	store := NewDedupStore[struct{}](10, 0.001)

	if store.Observe("msg1") {
		t.Error("First delivery should not be a duplicate")
	}
	if !store.Observe("msg1") {
		t.Error("Second delivery should be a duplicate")
	}
	if store.Observe("msg2") {
		t.Error("Different id should not be a duplicate")
	}
}

func TestDedupStore_Clear(t *testing.T) {
	store := NewDedupStore[int](100, 0.001)

	ids := []string{"msg1", "msg2", "msg3"}
	for i, id := range ids {
		store.Add(id, i)
	}
	if store.Size() != 3 {
		t.Errorf("Store size should be 3 before clear, got %d", store.Size())
	}

	store.Clear()

	if store.Size() != 0 {
		t.Errorf("Store size should be 0 after clear, got %d", store.Size())
	}
	for _, id := range ids {
		if _, ok := store.Get(id); ok {
			t.Errorf("Store should not have %s after clear", id)
		}
	}
}

func TestDedupStore_MaxCapacity(t *testing.T) {
	capacity := 5
	store := NewDedupStore[int](capacity, 0.001)

	for i := 0; i < capacity+3; i++ {
		store.Add(fmt.Sprintf("msg%d", i), i)
	}

	if store.Size() > capacity {
		t.Errorf("Store size should not exceed %d, got %d", capacity, store.Size())
	}

	for _, id := range []string{"msg5", "msg6", "msg7"} {
		if _, ok := store.Get(id); !ok {
			t.Errorf("Store should have recent id %s", id)
		}
	}
	if _, ok := store.Get("msg0"); ok {
		t.Error("Oldest id should have been evicted")
	}
}

func TestDedupStore_BloomFilterEffectiveness(t *testing.T) {
	store := NewDedupStore[int](1000, 0.001)

	numIDs := 500
	for i := 0; i < numIDs; i++ {
		store.Add(fmt.Sprintf("msg_%d", i), i)
	}

	for i := 0; i < numIDs; i++ {
		id := fmt.Sprintf("msg_%d", i)
		if got, ok := store.Get(id); !ok || got != i {
			t.Errorf("Get(%s) = %d, %v", id, got, ok)
		}
	}

	for i := numIDs; i < numIDs+1000; i++ {
		if _, ok := store.Get(fmt.Sprintf("unknown_%d", i)); ok {
			t.Errorf("Store should not have unknown_%d", i)
		}
	}
}

func BenchmarkDedupStore_Add(b *testing.B) {
	store := NewDedupStore[int](10000, 0.001)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Add(fmt.Sprintf("msg_%d", i), i)
	}
}
