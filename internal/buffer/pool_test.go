package buffer

import "testing"

func TestAllocateWarmAffinity(t *testing.T) {
	p := NewPool(4)

	idx0, err := p.Allocate(QoSHigh, 100)
	if err != nil {
		t.Fatal(err)
	}
	p.Free(idx0)

	// idx0 now carries a stale QoSHigh tag; a QoSHigh request should
	// prefer it over any other free buffer.
	idx1, err := p.Allocate(QoSHigh, 200)
	if err != nil {
		t.Fatal(err)
	}
	if idx1 != idx0 {
		t.Fatalf("expected warm-affinity reuse of slot %d, got %d", idx0, idx1)
	}
}

func TestAllocateExhaustion(t *testing.T) {
	p := NewPool(2)
	if _, err := p.Allocate(QoSNormal, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Allocate(QoSNormal, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Allocate(QoSNormal, 0); err == nil {
		t.Fatal("expected no_buffer error once pool is exhausted")
	}
}

func TestFreeAndReallocate(t *testing.T) {
	p := NewPool(1)
	idx, err := p.Allocate(QoSLow, 0)
	if err != nil {
		t.Fatal(err)
	}
	p.Free(idx)
	if p.Get(idx).InUse {
		t.Fatal("buffer still marked in_use after Free")
	}
	if _, err := p.Allocate(QoSLow, 0); err != nil {
		t.Fatal("expected reallocation to succeed after free")
	}
}

func TestGetOutOfRange(t *testing.T) {
	p := NewPool(1)
	if p.Get(-1) != nil || p.Get(5) != nil {
		t.Fatal("Get on out-of-range index must return nil")
	}
}
