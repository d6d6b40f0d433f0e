package ledger

import "testing"

func TestKnown(t *testing.T) {
	for _, name := range Names() {
		if !Known(name) {
			t.Fatalf("Known(%q) = false", name)
		}
	}
	if Known("customers") {
		t.Fatal("Known(customers) = true")
	}
}

func TestDescriptorReturnsCopy(t *testing.T) {
	table, ok := Descriptor(SalesTable)
	if !ok {
		t.Fatal("expected sales descriptor")
	}
	table.Columns[0] = "mutated"
	if Sales.Columns[0] != "customer_name" {
		t.Fatalf("Sales.Columns[0] = %q", Sales.Columns[0])
	}
	if _, ok := Descriptor("missing"); ok {
		t.Fatal("expected unknown table to be rejected")
	}
}
