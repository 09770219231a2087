package mdnsface

import (
	"testing"

	"rtnet-go/internal/wire"
)

func TestQueryMissOnEmptyCache(t *testing.T) {
	f := NewFacade(2, 2)
	if _, ok := f.Query("_http._tcp.local"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestResolveAndQuery(t *testing.T) {
	f := NewFacade(2, 2)
	addr, _ := wire.ParseIPv6("2001:db8::1")
	if err := f.Resolve("_http._tcp.local", addr, 80, 5000, 0); err != nil {
		t.Fatal(err)
	}

	rec, ok := f.Query("_http._tcp.local")
	if !ok || rec.Port != 80 {
		t.Fatalf("expected resolved record, got %+v ok=%v", rec, ok)
	}
}

func TestResolveEvictsSmallestRemainingTTL(t *testing.T) {
	f := NewFacade(2, 2)
	addr, _ := wire.ParseIPv6("2001:db8::1")
	f.Resolve("svc-a", addr, 1, 1000, 0)  // remaining ttl at now=500: 500
	f.Resolve("svc-b", addr, 2, 10000, 0) // remaining ttl at now=500: 9500

	// Both slots full. svc-a has the smaller remaining TTL at now=500.
	if err := f.Resolve("svc-c", addr, 3, 5000, 500); err != nil {
		t.Fatal(err)
	}

	if _, ok := f.Query("svc-a"); ok {
		t.Fatal("expected svc-a (smallest remaining TTL) to be evicted")
	}
	if _, ok := f.Query("svc-b"); !ok {
		t.Fatal("expected svc-b to survive")
	}
}

func TestAnnounceAndDueSchedule(t *testing.T) {
	f := NewFacade(2, 2)
	if err := f.Announce("_http._tcp.local", 8080, 1, 0); err != nil {
		t.Fatal(err)
	}

	if due := f.DueAnnouncements(500); len(due) != 0 {
		t.Fatalf("expected no due announcements before ttl elapses, got %d", len(due))
	}

	due := f.DueAnnouncements(1000)
	if len(due) != 1 || due[0].Port != 8080 {
		t.Fatalf("expected one due announcement, got %+v", due)
	}

	// Schedule refreshed; immediately due again only after another full TTL.
	if due := f.DueAnnouncements(1500); len(due) != 0 {
		t.Fatalf("expected schedule refreshed after firing, got %d", len(due))
	}
}

func TestAnnounceOverflow(t *testing.T) {
	f := NewFacade(2, 1)
	if err := f.Announce("svc-a", 1, 10, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Announce("svc-b", 2, 10, 0); err == nil {
		t.Fatal("expected overflow once the announce table is full")
	}
}

func TestAgeExpiresCacheRecords(t *testing.T) {
	f := NewFacade(2, 2)
	addr, _ := wire.ParseIPv6("2001:db8::1")
	f.Resolve("svc", addr, 80, 1000, 0)

	f.Age(500)
	if _, ok := f.Query("svc"); !ok {
		t.Fatal("record within ttl must survive Age")
	}

	f.Age(1500)
	if _, ok := f.Query("svc"); ok {
		t.Fatal("record past ttl must be expired by Age")
	}
}
