package routing

import (
	"sync"
	"testing"
)

func TestRecordAndResolve(t *testing.T) {
	tbl, err := NewTable(0)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}

	tbl.RecordRelay(10, 100)
	tbl.RecordRelay(11, 200)

	if uid, ok := tbl.ResolveUser(10); !ok || uid != 100 {
		t.Fatalf("resolve 10 = %d/%v, expected 100", uid, ok)
	}
	if uid, ok := tbl.ResolveUser(11); !ok || uid != 200 {
		t.Fatalf("resolve 11 = %d/%v, expected 200", uid, ok)
	}
	if _, ok := tbl.ResolveUser(12); ok {
		t.Fatal("resolve of untracked id should miss")
	}
}

func TestLastRelayTracksMostRecent(t *testing.T) {
	tbl, _ := NewTable(0)

	tbl.RecordRelay(1, 100)
	tbl.RecordRelay(2, 100)
	tbl.RecordRelay(3, 100)

	if id, ok := tbl.LastRelayOf(100); !ok || id != 3 {
		t.Fatalf("last relay = %d/%v, expected 3", id, ok)
	}

	tbl.RecordLast(100, 9)
	if id, _ := tbl.LastRelayOf(100); id != 9 {
		t.Fatalf("last relay after RecordLast = %d, expected 9", id)
	}
	// RecordLast must not create a resolvable forward entry.
	if _, ok := tbl.ResolveUser(9); ok {
		t.Fatal("back-reference id should not resolve to a user")
	}
}

func TestPurgeUser(t *testing.T) {
	tbl, _ := NewTable(0)

	tbl.RecordRelay(5, 100)
	tbl.PurgeUser(100)

	if _, ok := tbl.LastRelayOf(100); ok {
		t.Fatal("back-reference should be gone after purge")
	}
	if _, ok := tbl.ResolveUser(5); ok {
		t.Fatal("last forward mapping should be gone after purge")
	}
}

func TestCapacityBound(t *testing.T) {
	tbl, err := NewTable(8)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	for i := 0; i < 100; i++ {
		tbl.RecordRelay(i, int64(i))
	}
	if n := tbl.Len(); n != 8 {
		t.Fatalf("len = %d, expected capacity 8", n)
	}
	// Most recent entries survive.
	if uid, ok := tbl.ResolveUser(99); !ok || uid != 99 {
		t.Fatalf("resolve 99 = %d/%v, expected hit", uid, ok)
	}
}

// Concurrent inserts for distinct users must not contaminate each other's
// mappings.
func TestConcurrentNoCrossTalk(t *testing.T) {
	tbl, _ := NewTable(0)

	const users = 100
	var wg sync.WaitGroup
	wg.Add(users)
	for i := 0; i < users; i++ {
		go func(n int) {
			defer wg.Done()
			tbl.RecordRelay(n, int64(n+1000))
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		uid, ok := tbl.ResolveUser(i)
		if !ok || uid != int64(i+1000) {
			t.Fatalf("resolve %d = %d/%v, expected %d", i, uid, ok, i+1000)
		}
	}
}
