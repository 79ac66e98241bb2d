package vendors

import (
	"bytes"
	"testing"

	"github.com/slid-mod/slid/cosave"
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/host/hostmem"
	"github.com/slid-mod/slid/trait"
)

const (
	npcFID      = host.FormID(0x02000100)
	npc2FID     = host.FormID(0x02000101)
	factionFID  = host.FormID(0x02000200)
	faction2FID = host.FormID(0x02000201)
)

func fixture(t *testing.T) (*Registry, *hostmem.World) {
	t.Helper()
	w := hostmem.NewWorld()
	w.AddPlugin("Vendors.esp", 0x02)
	w.DefineItem(npcFID, "Adrianne", host.FormNPC, 0)
	w.DefineItem(npc2FID, "Belethor", host.FormNPC, 0)
	w.DefineItem(factionFID, "BlacksmithFaction", host.FormFaction, 0,
		"VendorItemWeapon", "VendorItemArmor", "VendorItemOreIngot")
	w.DefineItem(faction2FID, "MiscFaction", host.FormFaction, 0,
		"VendorItemClutter", "VendorItemTool")
	r := NewRegistry(w, nil)
	r.SetJitterSource(func() float64 { return 0.5 }) // jitter 0
	return r, w
}

func TestRegister(t *testing.T) {
	r, _ := fixture(t)

	v, reactivated, err := r.Register(npcFID, factionFID, "Adrianne", "Warmaiden's", 100)
	if err != nil || reactivated {
		t.Fatalf("err=%v reactivated=%v", err, reactivated)
	}
	if !v.Active || v.LastVisit != 100 || v.Registered != 100 {
		t.Fatalf("vendor %+v", v)
	}

	// Cancel then re-register: reactivates without a new record.
	if err := r.Deactivate(npcFID); err != nil {
		t.Fatal(err)
	}
	v, reactivated, err = r.Register(npcFID, factionFID, "Adrianne", "Warmaiden's", 200)
	if err != nil || !reactivated {
		t.Fatalf("err=%v reactivated=%v", err, reactivated)
	}
	if !v.Active || v.Registered != 100 {
		t.Fatalf("reactivation rewrote the record: %+v", v)
	}
	if len(r.All()) != 1 {
		t.Fatal("duplicate record")
	}

	if _, _, err := r.Register(0x02000FFF, factionFID, "Ghost", "", 0); err == nil {
		t.Fatal("unresolvable vendor registered")
	}
}

func TestAllowedSet(t *testing.T) {
	r, _ := fixture(t)

	r.SetAllowed([]host.FormID{npcFID})
	if _, _, err := r.Register(npc2FID, faction2FID, "Belethor", "", 0); err == nil {
		t.Fatal("disallowed vendor registered")
	}
	if _, _, err := r.Register(npcFID, factionFID, "Adrianne", "", 0); err != nil {
		t.Fatal(err)
	}

	// Emptying the set opens registration again but touches no record.
	r.SetAllowed(nil)
	if _, _, err := r.Register(npc2FID, faction2FID, "Belethor", "", 0); err != nil {
		t.Fatal(err)
	}
}

func TestJitterBounds(t *testing.T) {
	r, _ := fixture(t)
	for _, f := range []float64{0, 0.25, 0.999} {
		f := f
		r.SetJitterSource(func() float64 { return f })
		r.Clear()
		v, _, err := r.Register(npcFID, factionFID, "Adrianne", "", 1000)
		if err != nil {
			t.Fatal(err)
		}
		d := float64(v.LastVisit) - 1000
		if d < -6 || d > 6 {
			t.Fatalf("jitter %v out of range", d)
		}
	}
}

func TestRecordSaleAndDue(t *testing.T) {
	r, _ := fixture(t)
	r.Register(npcFID, factionFID, "Adrianne", "", 0)

	if due := r.Due(23, 24); len(due) != 0 {
		t.Fatal("due early")
	}
	if due := r.Due(24, 24); len(due) != 1 {
		t.Fatal("not due at the interval")
	}

	if err := r.RecordSale(npcFID, 5, 100, 24); err != nil {
		t.Fatal(err)
	}
	v, _ := r.Find(npcFID)
	if v.ItemsSold != 5 || v.GoldEarned != 100 || v.LastVisit != 24 {
		t.Fatalf("vendor %+v", v)
	}
	if due := r.Due(30, 24); len(due) != 0 {
		t.Fatal("due straight after a sale")
	}

	r.Deactivate(npcFID)
	if due := r.Due(1000, 24); len(due) != 0 {
		t.Fatal("inactive vendor due")
	}
}

func TestCronSchedule(t *testing.T) {
	r, _ := fixture(t)
	r.Register(npcFID, factionFID, "Adrianne", "", 0)

	if err := r.SetSchedule(npcFID, "nonsense"); err == nil {
		t.Fatal("bad expression accepted")
	}
	// Daily at game-hour midnight; game-hour 0 is the epoch midnight.
	if err := r.SetSchedule(npcFID, "0 0 * * *"); err != nil {
		t.Fatal(err)
	}
	if due := r.Due(23, 1); len(due) != 0 {
		t.Fatal("schedule fired before midnight")
	}
	if due := r.Due(24, 1000); len(due) != 1 {
		t.Fatal("schedule missed midnight")
	}
	if err := r.SetSchedule(npcFID, ""); err != nil {
		t.Fatal(err)
	}
	if _, have := r.Schedule(npcFID); have {
		t.Fatal("schedule survived removal")
	}
}

func TestBuyFilter(t *testing.T) {
	_, w := fixture(t)
	reg, err := filter.Init(trait.DefaultEvaluator())
	if err != nil {
		t.Fatal(err)
	}

	roots := BuyFilters(w, factionFID)
	want := []filter.ID{"weapons", "armor", "materials"}
	if len(roots) != len(want) {
		t.Fatalf("roots %v", roots)
	}
	for i := range want {
		if roots[i] != want[i] {
			t.Fatalf("roots %v", roots)
		}
	}

	sword := w.DefineItem(0x02000300, "Iron Sword", host.FormWeapon, 25)
	apple := w.DefineItem(0x02000301, "Apple", host.FormFood, 1)
	if !Accepts(reg, roots, sword) {
		t.Fatal("blacksmith refused a sword")
	}
	if Accepts(reg, roots, apple) {
		t.Fatal("blacksmith bought an apple")
	}

	if got := Categories(reg, roots); got != "Weapons, Armor, Smithing Materials" {
		t.Fatalf("categories %q", got)
	}
	if got := Categories(reg, BuyFilters(w, 0x02000FFF)); got != "Nothing" {
		t.Fatalf("dead faction categories %q", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r, w := fixture(t)
	r.Register(npcFID, factionFID, "Adrianne", "Warmaiden's", 10)
	r.Register(npc2FID, faction2FID, "Belethor", "General Goods", 20)
	r.SetInvested(npcFID, true)
	r.RecordSale(npcFID, 3, 60, 30)
	r.Deactivate(npc2FID)

	creg := cosave.NewRegistry(nil)
	creg.Register(r.Component())
	var buf bytes.Buffer
	if err := creg.Save(&buf); err != nil {
		t.Fatal(err)
	}
	saved := r.All()

	creg.Revert()
	if len(r.All()) != 0 {
		t.Fatal("revert incomplete")
	}
	if err := creg.Load(bytes.NewReader(buf.Bytes()), nil); err != nil {
		t.Fatal(err)
	}
	got := r.All()
	if len(got) != len(saved) {
		t.Fatalf("%d vendors", len(got))
	}
	for i := range saved {
		if got[i] != saved[i] {
			t.Fatalf("vendor %d:\n%+v\n%+v", i, got[i], saved[i])
		}
	}

	// Remap to a new load-order slot.
	var buf2 bytes.Buffer
	if err := creg.Save(&buf2); err != nil {
		t.Fatal(err)
	}
	remap := w.Remap(map[byte]byte{0x02: 0x05})
	creg.Revert()
	if err := creg.Load(bytes.NewReader(buf2.Bytes()), cosave.RemapFunc(remap)); err != nil {
		t.Fatal(err)
	}
	v, have := r.Find(0x05000100)
	if !have || v.Faction != 0x05000200 {
		t.Fatalf("remap failed: %+v have=%v", v, have)
	}
	if dropped := r.Validate(); dropped != 0 {
		t.Fatalf("remapped registry dropped %d", dropped)
	}
}

func TestLoadDropsMissingPlugin(t *testing.T) {
	r, _ := fixture(t)
	r.Register(npcFID, factionFID, "Adrianne", "", 0)
	r.Register(npc2FID, faction2FID, "Belethor", "", 0)

	creg := cosave.NewRegistry(nil)
	creg.Register(r.Component())
	var buf bytes.Buffer
	if err := creg.Save(&buf); err != nil {
		t.Fatal(err)
	}

	creg.Revert()
	err := creg.Load(bytes.NewReader(buf.Bytes()), func(fid host.FormID) (host.FormID, bool) {
		if fid == npcFID || fid == factionFID {
			return fid, true
		}
		return 0, false
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.All()) != 1 {
		t.Fatalf("%d vendors survived", len(r.All()))
	}
	if dropped := r.Validate(); dropped != 1 {
		t.Fatalf("load drop not reported: %d", dropped)
	}
}

// A version-1 record carries no invested flag; it reads as false.
func TestLoadVersion1(t *testing.T) {
	r, _ := fixture(t)

	var payload bytes.Buffer
	e := cosave.NewEncoder(&payload)
	e.U16(1)
	e.U32(uint32(npcFID))
	e.U32(uint32(factionFID))
	e.String("Adrianne")
	e.String("Warmaiden's")
	e.F32(10)
	e.F32(20)
	e.U32(7)
	e.U32(140)
	e.Bool(true)
	if err := e.Err(); err != nil {
		t.Fatal(err)
	}

	c := r.Component()
	if err := c.Load(cosave.NewDecoder(bytes.NewReader(payload.Bytes())), 1); err != nil {
		t.Fatal(err)
	}
	v, have := r.Find(npcFID)
	if !have {
		t.Fatal("vendor missing")
	}
	if v.Invested {
		t.Fatal("invested defaulted true")
	}
	if v.ItemsSold != 7 || v.GoldEarned != 140 || !v.Active {
		t.Fatalf("vendor %+v", v)
	}
}
