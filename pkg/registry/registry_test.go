package registry

import (
	"fmt"
	"sync"
	"testing"
)

// scorer stands in for the predictor entries the model catalog registers.
type scorer struct {
	Name    string
	Version string
}

func TestCatalog_Register(t *testing.T) {
	catalog := New[scorer]()

	tests := []struct {
		name    string
		key     string
		item    scorer
		wantErr bool
	}{
		{
			name:    "register valid item",
			key:     "empathy@1.0.0",
			item:    scorer{Name: "empathy", Version: "1.0.0"},
			wantErr: false,
		},
		{
			name:    "register item with empty name",
			key:     "",
			item:    scorer{Name: "", Version: "1.0.0"},
			wantErr: true,
		},
		{
			name:    "register duplicate item",
			key:     "empathy@1.0.0",
			item:    scorer{Name: "empathy", Version: "2.0.0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := catalog.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Catalog.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_Get(t *testing.T) {
	catalog := New[scorer]()

	want := scorer{Name: "resilience", Version: "1.0.0"}
	if err := catalog.Register("resilience", want); err != nil {
		t.Fatalf("Failed to register item: %v", err)
	}

	item, ok := catalog.Get("resilience")
	if !ok {
		t.Fatal("Catalog.Get() ok = false, want true")
	}
	if item != want {
		t.Errorf("Catalog.Get() = %+v, want %+v", item, want)
	}

	if _, ok := catalog.Get("missing"); ok {
		t.Error("Catalog.Get() ok = true for missing key, want false")
	}
}

func TestCatalog_NamesSorted(t *testing.T) {
	catalog := New[scorer]()

	for _, name := range []string{"self_regulation", "empathy", "resilience"} {
		if err := catalog.Register(name, scorer{Name: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	names := catalog.Names()
	want := []string{"empathy", "resilience", "self_regulation"}
	if len(names) != len(want) {
		t.Fatalf("Catalog.Names() length = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Catalog.Names()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestCatalog_ListFollowsNameOrder(t *testing.T) {
	catalog := New[scorer]()

	for _, name := range []string{"problem_solving", "empathy"} {
		if err := catalog.Register(name, scorer{Name: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	items := catalog.List()
	if len(items) != 2 {
		t.Fatalf("Catalog.List() length = %d, want 2", len(items))
	}
	if items[0].Name != "empathy" || items[1].Name != "problem_solving" {
		t.Errorf("Catalog.List() order = [%s, %s], want [empathy, problem_solving]",
			items[0].Name, items[1].Name)
	}
}

func TestCatalog_Remove(t *testing.T) {
	catalog := New[scorer]()

	if err := catalog.Register("empathy", scorer{Name: "empathy"}); err != nil {
		t.Fatalf("Failed to register item: %v", err)
	}

	if err := catalog.Remove("empathy"); err != nil {
		t.Errorf("Catalog.Remove() error = %v, want nil", err)
	}
	if _, exists := catalog.Get("empathy"); exists {
		t.Error("Catalog.Remove() item still exists after removal")
	}

	if err := catalog.Remove("empathy"); err == nil {
		t.Error("Catalog.Remove() error = nil for missing item, want error")
	}
}

func TestCatalog_Clear(t *testing.T) {
	catalog := New[scorer]()

	for _, name := range []string{"empathy", "problem_solving"} {
		if err := catalog.Register(name, scorer{Name: name}); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	if count := catalog.Count(); count != 2 {
		t.Errorf("Catalog.Count() before clear = %d, want 2", count)
	}

	catalog.Clear()

	if count := catalog.Count(); count != 0 {
		t.Errorf("Catalog.Count() after clear = %d, want 0", count)
	}
	if items := catalog.List(); len(items) != 0 {
		t.Errorf("Catalog.List() after clear length = %d, want 0", len(items))
	}
}

// Readers work off an immutable snapshot, so Get must never observe a
// half-written entry while a writer is registering.
func TestCatalog_ConcurrentReadersDuringRegister(t *testing.T) {
	catalog := New[scorer]()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			item := scorer{Name: fmt.Sprintf("concurrent-%d", i)}
			_ = catalog.Register(item.Name, item)
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if item, ok := catalog.Get(fmt.Sprintf("concurrent-%d", i)); ok && item.Name == "" {
				t.Errorf("Catalog.Get() returned a partially visible item at %d", i)
			}
			if got, listed := catalog.Count(), len(catalog.List()); listed < got {
				t.Errorf("Catalog.List() length %d went backwards from Count() %d", listed, got)
			}
		}
	}()

	wg.Wait()

	if count := catalog.Count(); count != 100 {
		t.Errorf("Catalog.Count() after concurrent access = %d, want 100", count)
	}
}
