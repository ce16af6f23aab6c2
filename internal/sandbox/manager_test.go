package sandbox

import "testing"

func TestOccupyRejectsDifferentOccupant(t *testing.T) {
	m := NewManager()
	if err := m.Occupy(A, "drop-1", "feature/a", []string{"main.go"}); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	if err := m.Occupy(A, "drop-2", "feature/b", nil); err == nil {
		t.Fatal("expected error occupying a lane held by a different drop")
	}
}

func TestCheckConflictsDetectsOverlappingFiles(t *testing.T) {
	m := NewManager()
	m.Occupy(A, "drop-1", "feature/a", []string{"main.go", "util.go"})
	m.Occupy(B, "drop-2", "feature/b", []string{"util.go"})

	if !m.CheckConflicts([]Name{A, B}) {
		t.Fatal("expected conflict on overlapping file util.go")
	}
}

func TestCheckConflictsFalseWhenDisjoint(t *testing.T) {
	m := NewManager()
	m.Occupy(A, "drop-1", "feature/a", []string{"main.go"})
	m.Occupy(B, "drop-2", "feature/b", []string{"other.go"})

	if m.CheckConflicts([]Name{A, B}) {
		t.Fatal("expected no conflict for disjoint file sets")
	}
}

func TestMergePreconditionsFailsWithoutMutatingState(t *testing.T) {
	m := NewManager()
	m.Occupy(A, "drop-1", "feature/a", nil)

	err := m.MergePreconditions([]Name{A}, func(Name) bool { return false })
	if err == nil {
		t.Fatal("expected precondition failure")
	}
	lease, _ := m.Lease(A)
	if lease.Occupant != "drop-1" {
		t.Fatal("expected lease untouched after failed precondition check")
	}
}

func TestPromoteToProductionReleasesAllLanes(t *testing.T) {
	m := NewManager()
	m.Occupy(A, "drop-1", "feature/a", nil)
	m.Occupy(D, "integration", "integration", nil)

	m.PromoteToProduction([]Name{A})

	leaseA, _ := m.Lease(A)
	leaseD, _ := m.Lease(D)
	if leaseA.Occupant != "" || leaseD.Occupant != "" {
		t.Fatalf("expected both lanes released, got A=%+v D=%+v", leaseA, leaseD)
	}
}
