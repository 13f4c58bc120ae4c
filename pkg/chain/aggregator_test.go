package chain

import "testing"

// The I2C-facing parts of Aggregator need real hardware; Apply and Table
// are pure and are exercised directly, the way the donor leaves
// machine-backed packages (pkg/keyboard) untested at the package level but
// tests pure logic elsewhere.

func TestTableDefaultReleased(t *testing.T) {
	tbl := NewTable(3)
	for addr := 0; addr < BaseAssignAddr+3; addr++ {
		if tbl.Get(addr) != Released {
			t.Errorf("addr %d: expected Released by default", addr)
		}
	}
}

func TestApplyDecodesAddrAndState(t *testing.T) {
	tbl := NewTable(3)
	agg := &Aggregator{Table: tbl}

	// bit7=1 (Pressed), bits6..0 = address 2
	agg.Apply(0x80 | 2)
	if tbl.Get(2) != Pressed {
		t.Errorf("expected addr 2 Pressed")
	}

	// bit7=0 (Released), address 2
	agg.Apply(2)
	if tbl.Get(2) != Released {
		t.Errorf("expected addr 2 Released")
	}
}

func TestApplyIdempotentDropsRepeat(t *testing.T) {
	tbl := NewTable(3)
	agg := &Aggregator{Table: tbl}

	agg.Apply(0x80 | 3) // Pressed
	if tbl.Get(3) != Pressed {
		t.Fatalf("expected addr 3 pressed")
	}

	// Same frame again — idempotent, should be a no-op either way.
	agg.Apply(0x80 | 3)
	if tbl.Get(3) != Pressed {
		t.Errorf("expected addr 3 to remain pressed")
	}
}

func TestApplyOutOfRangeDropped(t *testing.T) {
	tbl := NewTable(1) // valid addrs: 0..BaseAssignAddr (2 is the only slot addr)
	agg := &Aggregator{Table: tbl}

	// Address 50 is well outside the table; must not panic and must not
	// affect in-range state.
	agg.Apply(0x80 | 50)

	if tbl.Get(BaseAssignAddr) != Released {
		t.Errorf("out-of-range frame should not disturb in-range state")
	}
}
