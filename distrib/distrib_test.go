package distrib

import (
	"reflect"
	"testing"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/host/hostmem"
	"github.com/slid-mod/slid/network"
	"github.com/slid-mod/slid/trait"
)

const (
	masterFID = host.FormID(0x1000)
	wFID      = host.FormID(0x1001)
	bFID      = host.FormID(0x1002)
	cFID      = host.FormID(0x1003)
	w2FID     = host.FormID(0x1004)

	swordFID = host.FormID(0x2001)
	bookFID  = host.FormID(0x2002)
	appleFID = host.FormID(0x2003)
	sword1h  = host.FormID(0x2004)
	sword2h  = host.FormID(0x2005)
	ghostFID = host.FormID(0x2006)
)

type fixture struct {
	w   *hostmem.World
	reg *filter.Registry
	d   *Distributor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	w := hostmem.NewWorld()
	w.AddContainer(masterFID, "Master")
	w.AddContainer(wFID, "Weapons Chest")
	w.AddContainer(bFID, "Bookshelf")
	w.AddContainer(cFID, "Catch-All Chest")
	w.AddContainer(w2FID, "Second Weapons Chest")

	w.DefineItem(swordFID, "Iron Sword", host.FormWeapon, 30).Sub = "onehanded"
	w.DefineItem(bookFID, "Journal", host.FormBook, 10)
	w.DefineItem(appleFID, "Apple", host.FormFood, 2)
	w.DefineItem(sword1h, "Steel Sword", host.FormWeapon, 45).Sub = "onehanded"
	w.DefineItem(sword2h, "Greatsword", host.FormWeapon, 90).Sub = "twohanded"
	w.DefineItem(ghostFID, "", host.FormMisc, 0) // phantom: nameless

	reg, err := filter.Init(trait.DefaultEvaluator())
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{
		w:   w,
		reg: reg,
		d:   New(reg, w, w, w, nil),
	}
}

func pipeline(stages ...network.Stage) *network.Network {
	return &network.Network{
		Name:   "test",
		Master: masterFID,
		Stages: stages,
	}
}

// S1: basic routing.
func TestBasicRouting(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 2)
	f.w.Give(masterFID, bookFID, 3)
	f.w.Give(masterFID, appleFID, 1)

	n := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "books", Container: bFID},
	)
	n.CatchAll = cFID

	p, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.FilterCounts, []int{2, 3}) {
		t.Fatalf("filterCounts %v", p.FilterCounts)
	}
	if p.CatchAllCount != 1 || p.OriginCount != 0 {
		t.Fatalf("catchAll=%d origin=%d", p.CatchAllCount, p.OriginCount)
	}

	res, err := f.d.Distribute(n)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalItems != 6 {
		t.Fatalf("totalItems %d", res.TotalItems)
	}
	if f.w.TotalCount(masterFID) != 0 ||
		f.w.Count(wFID, swordFID) != 2 ||
		f.w.Count(bFID, bookFID) != 3 ||
		f.w.Count(cFID, appleFID) != 1 {
		t.Fatal("items not where they should be")
	}
}

// S2: contest between a family child and its root.
func TestContest(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, sword1h, 1)
	f.w.Give(masterFID, sword2h, 1)

	n := pipeline(
		network.Stage{Filter: "weapons.onehanded", Container: wFID},
		network.Stage{Filter: "weapons", Container: w2FID},
	)

	p, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.FilterCounts, []int{1, 1}) {
		t.Fatalf("filterCounts %v", p.FilterCounts)
	}
	if p.ContestedCounts[1] != 1 {
		t.Fatalf("contestedCounts %v", p.ContestedCounts)
	}
	if !reflect.DeepEqual(p.ContestedBy[1], map[int]int{0: 1}) {
		t.Fatalf("contestedBy %v", p.ContestedBy)
	}
}

// S3: Keep passthrough moves nothing.
func TestKeepPassthrough(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 2)
	f.w.Give(masterFID, appleFID, 3)

	n := pipeline(network.Stage{Filter: "weapons", Container: masterFID})
	n.CatchAll = masterFID

	p, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	if p.OriginCount != 5 {
		t.Fatalf("originCount %d", p.OriginCount)
	}

	res, err := f.d.Distribute(n)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalItems != 0 || f.w.TotalCount(masterFID) != 5 {
		t.Fatalf("moved %d, master has %d", res.TotalItems, f.w.TotalCount(masterFID))
	}
}

// S4: a missing destination leaves the master untouched.
func TestMissingContainer(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 1)
	f.w.DestroyForm(wFID)

	n := pipeline(network.Stage{Filter: "weapons", Container: wFID})

	res, err := f.d.Distribute(n)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalItems != 0 || res.SkippedUnavailable != 1 {
		t.Fatalf("total=%d skipped=%d", res.TotalItems, res.SkippedUnavailable)
	}
	if f.w.Count(masterFID, swordFID) != 1 {
		t.Fatal("master mutated")
	}
}

// Property 1: prediction is deterministic.
func TestPredictDeterminism(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 2)
	f.w.Give(masterFID, bookFID, 3)
	f.w.Give(masterFID, sword2h, 4)

	n := pipeline(
		network.Stage{Filter: "weapons.onehanded", Container: wFID},
		network.Stage{Filter: "weapons", Container: w2FID},
		network.Stage{Filter: "books", Container: bFID},
	)
	n.CatchAll = cFID

	a, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("predictions differ:\n%+v\n%+v", a, b)
	}
}

// Property 2 and 3: conservation and predict-then-distribute agreement.
func TestDistributeConservation(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 2)
	f.w.Give(masterFID, bookFID, 3)
	f.w.Give(masterFID, appleFID, 1)
	f.w.Give(bFID, bookFID, 7) // pre-existing satellite content

	n := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "books", Container: bFID},
	)
	n.CatchAll = cFID

	sum := func() int {
		total := f.w.TotalCount(masterFID)
		for _, fid := range n.Destinations() {
			total += f.w.TotalCount(fid)
		}
		return total
	}
	before := sum()

	p, err := f.d.Predict(n)
	if err != nil {
		t.Fatal(err)
	}
	wBefore := f.w.TotalCount(wFID)
	bBefore := f.w.TotalCount(bFID)
	cBefore := f.w.TotalCount(cFID)

	res, err := f.d.Distribute(n)
	if err != nil {
		t.Fatal(err)
	}

	if got := sum(); got != before {
		t.Fatalf("conservation broken: %d -> %d", before, got)
	}
	if got := f.w.TotalCount(wFID) - wBefore; got != p.FilterCounts[0] {
		t.Fatalf("stage 0 delta %d, predicted %d", got, p.FilterCounts[0])
	}
	if got := f.w.TotalCount(bFID) - bBefore; got != p.FilterCounts[1] {
		t.Fatalf("stage 1 delta %d, predicted %d", got, p.FilterCounts[1])
	}
	if got := f.w.TotalCount(cFID) - cBefore; got != p.CatchAllCount {
		t.Fatalf("catch-all delta %d, predicted %d", got, p.CatchAllCount)
	}
	if res.TotalItems != p.FilterCounts[0]+p.FilterCounts[1]+p.CatchAllCount {
		t.Fatalf("result total %d disagrees with prediction", res.TotalItems)
	}
}

// Property 4: a Pass stage is inert.
func TestPassInertness(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, swordFID, 2)
	f.w.Give(masterFID, bookFID, 3)

	without := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "books", Container: bFID},
	)
	with := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "potions"}, // Pass
		network.Stage{Filter: "books", Container: bFID},
	)

	a, err := f.d.Predict(without)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.d.Predict(with)
	if err != nil {
		t.Fatal(err)
	}
	if b.FilterCounts[1] != 0 {
		t.Fatalf("pass slot counted %d", b.FilterCounts[1])
	}
	if a.FilterCounts[0] != b.FilterCounts[0] || a.FilterCounts[1] != b.FilterCounts[2] {
		t.Fatalf("pass stage disturbed counts: %v vs %v", a.FilterCounts, b.FilterCounts)
	}
}

// Property 5: swapping adjacent stages that both match moves the stack
// between them, and contested counts mirror the change.
func TestContestOrderSensitivity(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, sword1h, 1)

	childFirst := pipeline(
		network.Stage{Filter: "weapons.onehanded", Container: wFID},
		network.Stage{Filter: "weapons", Container: w2FID},
	)
	rootFirst := pipeline(
		network.Stage{Filter: "weapons", Container: w2FID},
		network.Stage{Filter: "weapons.onehanded", Container: wFID},
	)

	a, err := f.d.Predict(childFirst)
	if err != nil {
		t.Fatal(err)
	}
	b, err := f.d.Predict(rootFirst)
	if err != nil {
		t.Fatal(err)
	}

	if a.FilterCounts[0] != 1 || a.FilterCounts[1] != 0 {
		t.Fatalf("child-first counts %v", a.FilterCounts)
	}
	if b.FilterCounts[0] != 1 || b.FilterCounts[1] != 0 {
		t.Fatalf("root-first counts %v", b.FilterCounts)
	}
	if a.ContestedCounts[1] != 1 || b.ContestedCounts[1] != 1 {
		t.Fatalf("contested asymmetric: %v / %v", a.ContestedCounts, b.ContestedCounts)
	}
}

// Property 6: after Whoosh, nothing matching a whooshed filter remains
// at its satellite.
func TestWhooshSafety(t *testing.T) {
	f := newFixture(t)
	f.w.Give(wFID, swordFID, 2) // matches weapons: comes back
	f.w.Give(wFID, appleFID, 4) // does not match: stays

	n := pipeline(network.Stage{Filter: "weapons", Container: wFID})
	n.WhooshFilters = []filter.ID{"weapons"}
	n.WhooshConfigured = true

	moved, err := f.d.Whoosh(n)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 2 {
		t.Fatalf("moved %d", moved)
	}
	if f.w.Count(masterFID, swordFID) != 2 || f.w.Count(wFID, appleFID) != 4 {
		t.Fatal("whoosh moved the wrong things")
	}

	stacks, _ := f.w.Inventory(wFID)
	for _, s := range stacks {
		if f.reg.Match("weapons", s.Item) {
			t.Fatalf("%s still at satellite", s.Item.Name())
		}
	}
}

func TestWhooshDefaultSet(t *testing.T) {
	f := newFixture(t)
	f.w.Give(wFID, swordFID, 1)

	// Unconfigured: the registry's default whoosh roots apply, which
	// include weapons.
	n := pipeline(network.Stage{Filter: "weapons", Container: wFID})

	moved, err := f.d.Whoosh(n)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 1 {
		t.Fatalf("moved %d", moved)
	}
}

func TestGatherToMaster(t *testing.T) {
	f := newFixture(t)
	f.w.Give(wFID, swordFID, 2)
	f.w.Give(bFID, bookFID, 3)
	f.w.Give(cFID, appleFID, 1)
	f.w.Give(ghostCarrier(f), ghostFID, 5)

	n := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "books", Container: bFID},
	)
	n.CatchAll = cFID

	moved, err := f.d.GatherToMaster(n, 0)
	if err != nil {
		t.Fatal(err)
	}
	if moved != 6 {
		t.Fatalf("moved %d", moved)
	}
	if f.w.TotalCount(masterFID) != 6 {
		t.Fatalf("master has %d", f.w.TotalCount(masterFID))
	}
}

// ghostCarrier gives the phantom item a home on one of the satellites
// so gather has something to skip.
func ghostCarrier(f *fixture) host.FormID {
	return wFID
}

func TestGatherExcludesSell(t *testing.T) {
	f := newFixture(t)
	f.w.Give(wFID, swordFID, 2)
	f.w.Give(bFID, bookFID, 3)

	n := pipeline(
		network.Stage{Filter: "weapons", Container: wFID},
		network.Stage{Filter: "books", Container: bFID},
	)

	moved, err := f.d.GatherToMaster(n, bFID) // bFID doubles as sell
	if err != nil {
		t.Fatal(err)
	}
	if moved != 2 || f.w.Count(bFID, bookFID) != 3 {
		t.Fatal("gather touched the sell container")
	}
}

func TestDistributePhantomsSkipped(t *testing.T) {
	f := newFixture(t)
	f.w.Give(masterFID, ghostFID, 5)
	f.w.Give(masterFID, swordFID, 1)

	n := pipeline(network.Stage{Filter: "weapons", Container: wFID})
	n.CatchAll = cFID

	res, err := f.d.Distribute(n)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalItems != 1 {
		t.Fatalf("moved %d", res.TotalItems)
	}
	if f.w.Count(masterFID, ghostFID) != 5 {
		t.Fatal("phantom moved")
	}
}
