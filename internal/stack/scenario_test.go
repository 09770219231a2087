package stack

import (
	"os"
	"path/filepath"
	"testing"
)

const demoScenario = `
node:
  name: node-a
  address: fe80::10
  mac: 00:DE:AD:BE:EF:01
routes:
  - destination: "2001:db8::"
    prefix_len: 64
    metric: 10
  - destination: "2001:db8:1::1"
    prefix_len: 128
    next_hop: "2001:db8::1"
    metric: 5
mdns_announce:
  - name: _demo._udp.local
    port: 9000
    ttl_sec: 60
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadScenarioAndApply(t *testing.T) {
	cfg, err := LoadScenario(writeScenario(t, demoScenario))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Node.Name != "node-a" || len(cfg.Routes) != 2 || len(cfg.MDNS) != 1 {
		t.Fatalf("unexpected scenario: %+v", cfg)
	}

	ctx, _ := newTestContext()
	if err := cfg.Apply(ctx); err != nil {
		t.Fatal(err)
	}

	dst := mustAddr(t, "2001:db8::42")
	r := ctx.routes.Find(dst, 0)
	if r == nil || r.PrefixLen != 64 {
		t.Fatalf("expected the /64 scenario route to resolve, got %+v", r)
	}

	narrow := mustAddr(t, "2001:db8:1::1")
	r = ctx.routes.Find(narrow, 0)
	if r == nil || !r.HasNextHop {
		t.Fatalf("expected the /128 next-hop route, got %+v", r)
	}

	if _, err := ctx.MDNSQuery("_demo._udp.local"); err == nil {
		t.Fatal("announcing a service must not populate the query cache")
	}
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing name":   "node:\n  address: fe80::10\n  mac: 00:DE:AD:BE:EF:01\n",
		"bad address":    "node:\n  name: x\n  address: not-an-ip\n  mac: 00:DE:AD:BE:EF:01\n",
		"bad mac":        "node:\n  name: x\n  address: fe80::10\n  mac: zz\n",
		"bad prefix len": "node:\n  name: x\n  address: fe80::10\n  mac: 00:DE:AD:BE:EF:01\nroutes:\n  - destination: \"2001:db8::\"\n    prefix_len: 129\n    metric: 1\n",
	}
	for name, content := range cases {
		if _, err := LoadScenario(writeScenario(t, content)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}
