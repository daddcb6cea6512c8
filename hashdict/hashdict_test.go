package hashdict

import (
	"fmt"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/rpcpool/kvcore/value"
)

func TestFNV1a32KnownVectors(t *testing.T) {
	// FNV-1a of the empty string is the offset basis itself.
	if h := FNV1a32(nil); h != fnvOffsetBasis {
		t.Errorf("FNV1a32(nil) = %#x, want offset basis %#x", h, fnvOffsetBasis)
	}
	if h1, h2 := FNV1a32([]byte("foo")), FNV1a32([]byte("foo")); h1 != h2 {
		t.Errorf("hash not deterministic: %#x != %#x", h1, h2)
	}
}

func TestInsertLookupRoundTrip(t *testing.T) {
	d := New(DefaultWorkUnit)
	keys := []string{"alpha", "beta", "gamma", "delta"}
	for i, k := range keys {
		d.Insert([]byte(k), value.NewString([]byte(fmt.Sprintf("v%d", i))))
	}
	for i, k := range keys {
		got, ok := d.Lookup([]byte(k))
		if !ok {
			t.Fatalf("Lookup(%q) missing", k)
		}
		want := fmt.Sprintf("v%d", i)
		if string(got.Bytes()) != want {
			t.Errorf("Lookup(%q) = %q, want %q", k, got.Bytes(), want)
		}
	}
}

func TestInsertOverwrite(t *testing.T) {
	d := New(DefaultWorkUnit)
	d.Insert([]byte("k"), value.NewString([]byte("first")))
	d.Insert([]byte("k"), value.NewString([]byte("second")))
	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	got, ok := d.Lookup([]byte("k"))
	if !ok || string(got.Bytes()) != "second" {
		t.Errorf("Lookup(k) = %v, %v; want second", got, ok)
	}
}

func TestDeleteReportsPresence(t *testing.T) {
	d := New(DefaultWorkUnit)
	d.Insert([]byte("k"), value.NewString([]byte("v")))
	if !d.Delete([]byte("k")) {
		t.Fatal("Delete(k) should report true when key was present")
	}
	if d.Delete([]byte("k")) {
		t.Fatal("Delete(k) should report false on second call")
	}
	if _, ok := d.Lookup([]byte("k")); ok {
		t.Fatal("Lookup(k) should miss after delete")
	}
}

func TestRehashTransparency(t *testing.T) {
	d := New(DefaultWorkUnit)
	const n = 5000
	for i := 0; i < n; i++ {
		d.Insert([]byte(fmt.Sprintf("key-%d", i)), value.NewString([]byte(fmt.Sprintf("val-%d", i))))
	}
	if d.Len() != n {
		t.Fatalf("Len() = %d, want %d\n%s", d.Len(), n, spew.Sdump(d))
	}
	for i := 0; i < n; i++ {
		k := fmt.Sprintf("key-%d", i)
		got, ok := d.Lookup([]byte(k))
		if !ok {
			t.Fatalf("Lookup(%q) missing after rehash\n%s", k, spew.Sdump(d))
		}
		want := fmt.Sprintf("val-%d", i)
		if string(got.Bytes()) != want {
			t.Errorf("Lookup(%q) = %q, want %q", k, got.Bytes(), want)
		}
	}
}

func TestMigrationDrainsPrimaryEventually(t *testing.T) {
	d := New(DefaultWorkUnit)
	for i := 0; i < 200; i++ {
		d.Insert([]byte(fmt.Sprintf("k%d", i)), value.NewString([]byte("v")))
	}
	// Enough subsequent operations must have fully drained migration by now:
	// the table should have stopped growing in lockstep with inserts once
	// the bounded work unit catches up.
	if d.migrating() {
		// Force more steps via no-op lookups until migration completes or we
		// give up after a generous bound.
		for i := 0; i < 1000 && d.migrating(); i++ {
			d.Lookup([]byte("nonexistent"))
		}
	}
	if d.migrating() {
		t.Fatal("migration did not complete after many subsequent operations")
	}
}

func TestLookupMutAllowsInPlaceListEdit(t *testing.T) {
	d := New(DefaultWorkUnit)
	d.Insert([]byte("list"), value.NewList())
	v, ok := d.LookupMut([]byte("list"))
	if !ok {
		t.Fatal("LookupMut(list) missing")
	}
	if err := v.List().Push([]byte("a")); err != nil {
		t.Fatal(err)
	}
	got, ok := d.Lookup([]byte("list"))
	if !ok {
		t.Fatal("Lookup(list) missing after mutation")
	}
	if got.List().Len() != 1 {
		t.Errorf("list len = %d, want 1", got.List().Len())
	}
}
