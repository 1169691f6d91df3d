package conversation

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistry_CreateGetDelete(t *testing.T) {
	reg := NewRegistry()

	conv := reg.Create("conv-1")
	if conv.ID != "conv-1" {
		t.Errorf("ID = %q, want conv-1", conv.ID)
	}

	// Creating the same id again returns the existing conversation.
	if again := reg.Create("conv-1"); again != conv {
		t.Error("Create with existing id should return the same conversation")
	}

	got, ok := reg.Get("conv-1")
	if !ok || got != conv {
		t.Error("Get() did not return the registered conversation")
	}

	if !reg.Delete("conv-1") {
		t.Error("Delete() = false, want true")
	}
	if reg.Delete("conv-1") {
		t.Error("second Delete() = true, want false")
	}
	if _, ok := reg.Get("conv-1"); ok {
		t.Error("conversation still present after Delete")
	}
}

func TestRegistry_GeneratesID(t *testing.T) {
	reg := NewRegistry()
	conv := reg.Create("")
	if conv.ID == "" {
		t.Fatal("expected a generated id")
	}
	if _, ok := reg.Get(conv.ID); !ok {
		t.Error("generated id not registered")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", n%10)
			reg.Create(id)
			reg.Get(id)
			if n%3 == 0 {
				reg.Delete(id)
			}
		}(i)
	}
	wg.Wait()

	if reg.Len() > 10 {
		t.Errorf("Len() = %d, want at most 10", reg.Len())
	}
}
