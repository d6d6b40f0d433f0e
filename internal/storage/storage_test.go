package storage

import "testing"

func TestBuildSnapshotPath(t *testing.T) {
	key, err := BuildSnapshotPath("ledger", "sales")
	if err != nil {
		t.Fatalf("BuildSnapshotPath() error = %v", err)
	}
	if key != "ledger/sales/snapshot.parquet" {
		t.Fatalf("BuildSnapshotPath() = %q", key)
	}
}

func TestBuildSnapshotPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildSnapshotPath("../oops", "sales"); err == nil {
		t.Fatal("expected invalid dataset error")
	}
	if _, err := BuildSnapshotPath("ledger", ""); err == nil {
		t.Fatal("expected invalid table name error")
	}
}

func TestPutOptionsContentTypeDefault(t *testing.T) {
	if got := (PutOptions{}).ResolvedContentType(); got != SnapshotContentType {
		t.Fatalf("ResolvedContentType() = %q", got)
	}
	if got := (PutOptions{ContentType: "text/plain"}).ResolvedContentType(); got != "text/plain" {
		t.Fatalf("ResolvedContentType() = %q", got)
	}
}
