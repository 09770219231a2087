package routing

import (
	"testing"

	"rtnet-go/internal/wire"
)

func TestNewTableInstallsLinkLocalDefault(t *testing.T) {
	tab := NewTable(4, 0)
	dst, _ := wire.ParseIPv6("fe80::1")
	r := tab.Find(dst, 0)
	if r == nil {
		t.Fatal("expected link-local default route to match a fe80:: destination")
	}
	if r.PrefixLen != LinkLocalPrefixLen {
		t.Fatalf("expected prefix len %d, got %d", LinkLocalPrefixLen, r.PrefixLen)
	}
}

func TestLongestPrefixMatchWins(t *testing.T) {
	tab := NewTable(8, 0)
	wide, _ := wire.ParseIPv6("2001:db8::")
	narrow, _ := wire.ParseIPv6("2001:db8::1")
	if err := tab.Add(wide, 32, wire.IPv6Addr{}, false, 10, 0); err != nil {
		t.Fatal(err)
	}
	if err := tab.Add(narrow, 128, wire.IPv6Addr{}, false, 10, 0); err != nil {
		t.Fatal(err)
	}

	dst, _ := wire.ParseIPv6("2001:db8::1")
	r := tab.Find(dst, 0)
	if r == nil || r.PrefixLen != 128 {
		t.Fatalf("expected the /128 route to win, got %+v", r)
	}
}

func TestMetricTieBreak(t *testing.T) {
	tab := NewTable(8, 0)
	dest, _ := wire.ParseIPv6("2001:db8::")
	if err := tab.Add(dest, 64, wire.IPv6Addr{}, false, 20, 0); err != nil {
		t.Fatal(err)
	}
	if err := tab.Add(dest, 64, wire.IPv6Addr{}, false, 5, 0); err != nil {
		t.Fatal(err)
	}

	dst, _ := wire.ParseIPv6("2001:db8::1")
	r := tab.Find(dst, 0)
	if r == nil || r.Metric != 5 {
		t.Fatalf("expected the lower-metric route to win, got %+v", r)
	}
}

func TestFindRefreshesLastUsed(t *testing.T) {
	tab := NewTable(8, 0)
	dest, _ := wire.ParseIPv6("2001:db8::")
	if err := tab.Add(dest, 64, wire.IPv6Addr{}, false, 1, 0); err != nil {
		t.Fatal(err)
	}

	dst, _ := wire.ParseIPv6("2001:db8::1")
	r := tab.Find(dst, 5000)
	if r == nil || r.LastUsedMs != 5000 {
		t.Fatalf("expected LastUsedMs refreshed to 5000, got %+v", r)
	}
}

func TestAddOverflowReportsError(t *testing.T) {
	tab := NewTable(2, 0) // one slot already consumed by the link-local default
	dest, _ := wire.ParseIPv6("2001:db8::")
	if err := tab.Add(dest, 64, wire.IPv6Addr{}, false, 1, 0); err != nil {
		t.Fatal(err)
	}

	dest2, _ := wire.ParseIPv6("2001:db9::")
	if err := tab.Add(dest2, 64, wire.IPv6Addr{}, false, 1, 0); err == nil {
		t.Fatal("expected overflow once the fixed capacity (including the link-local default) is exhausted")
	}
}

func TestAgeSkipsLinkLocalDefault(t *testing.T) {
	tab := NewTable(4, 0)
	tab.Age(1_000_000, 1)

	dst, _ := wire.ParseIPv6("fe80::1")
	if tab.Find(dst, 1_000_000) == nil {
		t.Fatal("link-local default route must never age out")
	}
}

func TestAgeInvalidatesStaleRoute(t *testing.T) {
	tab := NewTable(4, 0)
	dest, _ := wire.ParseIPv6("2001:db8::")
	tab.Add(dest, 64, wire.IPv6Addr{}, false, 1, 0)

	tab.Age(1000, 2000) // well within horizon, must survive
	dst, _ := wire.ParseIPv6("2001:db8::1")
	if tab.Find(dst, 1000) == nil {
		t.Fatal("route within the horizon must survive Age")
	}

	tab.Age(5000, 2000) // now stale
	if tab.Find(dst, 5000) != nil {
		t.Fatal("route past the horizon must be invalidated by Age")
	}
}
