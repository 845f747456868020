package postgres

import "testing"

func TestPendingMigrations(t *testing.T) {
	all, err := pendingMigrations(nil)
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(all) == 0 || all[0] != "001_init.sql" {
		t.Fatalf("expected 001_init.sql first, got %v", all)
	}

	rest, err := pendingMigrations([]string{"001_init.sql"})
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	for _, f := range rest {
		if f == "001_init.sql" {
			t.Error("applied migration reported as pending")
		}
	}
}
