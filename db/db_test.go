package db

import "testing"

func TestLookupIsCaseInsensitive(t *testing.T) {
	got, ok := lookup("booking")
	if !ok || got.name != "Booking" {
		t.Fatalf("lookup(booking) = %v, %v", got.name, ok)
	}
	if _, ok := lookup("Post"); ok {
		t.Fatal("unexpected table Post")
	}
}

func TestTableNamesStartWithHost(t *testing.T) {
	names := TableNames()
	if len(names) != len(tables) || names[0] != "Host" {
		t.Fatalf("unexpected table order %v", names)
	}
}
