package interner

import "testing"

func TestInternAssignsStableIds(t *testing.T) {
	in := New()

	a := in.Intern("src/a.cpp")
	b := in.Intern("src/b.cpp")
	if a == 0 || b == 0 {
		t.Fatal("ids must start above the reserved 0")
	}
	if a == b {
		t.Fatal("distinct names share an id")
	}
	if again := in.Intern("src/a.cpp"); again != a {
		t.Errorf("re-intern changed the id: %d vs %d", again, a)
	}
	if in.Lookup(a) != "src/a.cpp" {
		t.Errorf("lookup = %q", in.Lookup(a))
	}
	if in.Len() != 2 {
		t.Errorf("len = %d", in.Len())
	}
}

func TestEmptyNameIsInvalid(t *testing.T) {
	in := New()
	if in.Intern("") != 0 {
		t.Error("empty name must map to id 0")
	}
	if in.Lookup(0) != "" {
		t.Error("id 0 must resolve to empty")
	}
	if in.Find("missing") != 0 {
		t.Error("unknown name must be 0")
	}
}

func TestRemoveRecyclesIds(t *testing.T) {
	in := New()
	a := in.Intern("a")
	in.Intern("b")

	in.Remove(a)
	if in.Find("a") != 0 {
		t.Error("removed name still resolvable")
	}
	if in.Lookup(a) != "" {
		t.Error("removed id still resolvable")
	}

	c := in.Intern("c")
	if c != a {
		t.Errorf("freed id %d not recycled, got %d", a, c)
	}

	// Double remove is a no-op.
	in.Remove(a)
	in.Remove(999)
	if in.Len() != 2 {
		t.Errorf("len = %d", in.Len())
	}
}

func TestRestore(t *testing.T) {
	in := New()
	in.Restore(5, "five")
	in.Restore(2, "two")

	if in.Lookup(5) != "five" || in.Find("two") != 2 {
		t.Error("restore lost an entry")
	}

	// Holes left by Restore are handed out before the table grows.
	id := in.Intern("new")
	if id >= 5 && id != 2 && id != 5 {
		t.Errorf("expected a recycled hole, got %d", id)
	}
	if id == 5 || id == 2 {
		t.Errorf("live id %d reassigned", id)
	}
}

func TestEachVisitsAscending(t *testing.T) {
	in := New()
	in.Intern("x")
	in.Intern("y")
	in.Intern("z")

	var ids []int
	in.Each(func(id int, name string) bool {
		ids = append(ids, id)
		return true
	})
	if len(ids) != 3 {
		t.Fatalf("visited %d entries", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("ids not ascending: %v", ids)
		}
	}
}
