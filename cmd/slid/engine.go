package main

import (
	"log/slog"
	"sync"

	"github.com/slid-mod/slid/bus"
	"github.com/slid-mod/slid/containers"
	"github.com/slid-mod/slid/cosave"
	"github.com/slid-mod/slid/distrib"
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/host/hostmem"
	"github.com/slid-mod/slid/network"
	"github.com/slid-mod/slid/preset"
	"github.com/slid-mod/slid/sales"
	"github.com/slid-mod/slid/script"
	"github.com/slid-mod/slid/settings"
	"github.com/slid-mod/slid/trait"
	"github.com/slid-mod/slid/vendors"
)

// Demo world layout.
const (
	masterFID = host.FormID(0x01000100)
	rackFID   = host.FormID(0x01000101)
	shelfFID  = host.FormID(0x01000102)
	pantryFID = host.FormID(0x01000103)
	sellFID   = host.FormID(0x01000104)
	crateFID  = host.FormID(0x01000105)
	npcFID    = host.FormID(0x01000200)
	facFID    = host.FormID(0x01000201)
)

// pickerContext tells the picker's Special source which network's
// master the open picker belongs to.
type pickerContext struct {
	mu     sync.Mutex
	master host.FormID
}

func (p *pickerContext) set(fid host.FormID) {
	p.mu.Lock()
	p.master = fid
	p.mu.Unlock()
}

func (p *pickerContext) get() host.FormID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.master
}

// engine is the full stack wired over the in-memory world.
type engine struct {
	world    *hostmem.World
	filters  *filter.Registry
	net      *network.Manager
	dist     *distrib.Distributor
	ven      *vendors.Registry
	sales    *sales.Processor
	settings *settings.Settings
	surface  *script.Surface
	saves    *cosave.Registry
	pick     *containers.Registry
	pickCtx  *pickerContext
	sisters  []*bus.SessionCache
	tasks    host.Tasks
	log      *slog.Logger
}

func newEngine(iniPath, presetDir string, level *slog.LevelVar, log *slog.Logger) (*engine, error) {
	w := hostmem.NewWorld()
	w.AddPlugin("Demo.esm", 0x01)
	w.AddContainer(masterFID, "Master Chest")
	w.AddContainer(rackFID, "Weapon Rack")
	w.AddContainer(shelfFID, "Bookshelf")
	w.AddContainer(pantryFID, "Pantry")
	w.AddContainer(sellFID, "Strongbox")
	w.AddContainer(crateFID, "Courier Crate")
	w.DefineItem(npcFID, "Belethor", host.FormNPC, 0)
	w.DefineItem(facFID, "GeneralGoodsFaction", host.FormFaction, 0,
		"VendorItemFood", "VendorItemClutter")

	stockDemoItems(w)

	freg, err := filter.Init(trait.DefaultEvaluator())
	if err != nil {
		return nil, err
	}
	cfg, err := settings.Load(iniPath, level, log)
	if err != nil {
		return nil, err
	}
	net := network.NewManager(freg, w, log)
	ven := vendors.NewRegistry(w, log)

	// Picker sources in their fixed priority order.  One sister
	// plugin answers the container query, the other is absent; both
	// responses are cached for the session.
	pickCtx := &pickerContext{}
	courier := bus.NewSessionCache(bus.ClientFunc(func(tag string) ([]bus.RemoteContainer, bool) {
		if tag != bus.ListContainersRequest {
			return nil, false
		}
		return []bus.RemoteContainer{
			{FormID: crateFID, DisplayName: "Courier Crate", Location: "Warehouse"},
		}, true
	}))
	hoarder := bus.NewSessionCache(bus.ClientFunc(func(string) ([]bus.RemoteContainer, bool) {
		return nil, false
	}))
	pick := containers.NewRegistry(w)
	pick.Register(containers.GroupSpecial, &containers.SpecialSource{
		Master: pickCtx.get, Sell: net.SellContainer, Names: w,
	})
	pick.Register(containers.GroupTagged, &containers.TaggedSource{
		Tags: net.Tags, Resolver: w,
	})
	pick.Register(containers.GroupNearby, &containers.ExternalSource{Plugin: "Courier", Client: courier})
	pick.Register(containers.GroupNearby, &containers.ExternalSource{Plugin: "Hoarder", Client: hoarder})
	pick.Register(containers.GroupNearby, &containers.CellScanSource{
		Recent: w.Containers, Names: w, Resolver: w,
	})

	proc, err := sales.New(sales.Deps{
		Net: net, Ven: ven, Filter: freg,
		Inv: w, Mov: w, Forms: w, Ledger: w, Log: log,
	}, cfg.SalesConfig())
	if err != nil {
		return nil, err
	}

	e := &engine{
		world:    w,
		filters:  freg,
		net:      net,
		dist:     distrib.New(freg, w, w, w, log),
		ven:      ven,
		sales:    proc,
		settings: cfg,
		pick:     pick,
		pickCtx:  pickCtx,
		sisters:  []*bus.SessionCache{courier, hoarder},
		tasks:    w,
		log:      log,
	}
	e.surface = script.New(script.Deps{
		Net: net, Dist: e.dist, Ven: ven, Sales: proc,
		Settings: cfg, Clock: w, Names: w, Log: log,
		Pick: pick, PickFor: pickCtx.set,
	})

	e.saves = cosave.NewRegistry(log)
	e.saves.Register(net.NetworksComponent())
	e.saves.Register(net.TagsComponent())
	e.saves.Register(proc.Component())
	e.saves.Register(ven.Component())

	if presetDir != "" {
		loader := preset.NewLoader(w, freg, log)
		res, err := loader.LoadDir(presetDir)
		if err != nil {
			return nil, err
		}
		preset.Merge(net, res)
		ven.SetAllowed(res.AllowedVendors)
	}
	return e, nil
}

// postLoad runs the housekeeping a game load triggers: sister-plugin
// caches are stale, and dropped records want a report.  The validation
// is deferred to the host's task queue so it runs after the load
// settles.
func (e *engine) postLoad() {
	for _, s := range e.sisters {
		s.Invalidate()
	}
	e.tasks.Defer(func() {
		counts := e.net.ValidateNetworks()
		pruned := e.ven.Validate()
		e.log.Info("post-load validation",
			"prunedNetworks", counts.PrunedNetworks,
			"prunedFilters", counts.PrunedFilters,
			"prunedTags", counts.PrunedTags,
			"prunedSell", counts.PrunedSell,
			"prunedVendors", pruned)
	})
}

func stockDemoItems(w *hostmem.World) {
	type row struct {
		fid      host.FormID
		name     string
		typ      host.FormType
		value    int
		sub      string
		keywords []string
	}
	rows := []row{
		{0x01000300, "Iron Sword", host.FormWeapon, 25, "onehanded", nil},
		{0x01000301, "Steel Greatsword", host.FormWeapon, 90, "twohanded", nil},
		{0x01000302, "Hunting Bow", host.FormWeapon, 50, "ranged", nil},
		{0x01000303, "Book of Roads", host.FormBook, 15, "", nil},
		{0x01000304, "Healing Potion", host.FormPotion, 36, "", nil},
		{0x01000305, "Apple", host.FormFood, 2, "", []string{"VendorItemFood"}},
		{0x01000306, "Wooden Plate", host.FormMisc, 3, "", []string{"VendorItemClutter"}},
		{0x01000307, "Garnet", host.FormMisc, 520, "", []string{"VendorItemGem"}},
	}
	for _, r := range rows {
		it := w.DefineItem(r.fid, r.name, r.typ, r.value, r.keywords...)
		it.Sub = r.sub
		w.Give(masterFID, r.fid, 3)
	}
}
