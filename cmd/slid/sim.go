package main

import (
	"fmt"
	"log/slog"

	"github.com/slid-mod/slid/cosave"
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

// runSim plays one scripted day: set up a network, predict, sort,
// register a vendor, run the sell scheduler, and save everything into
// a cosave slot.
func runSim(iniPath, dbPath, presetDir, slot string, level *slog.LevelVar, log *slog.Logger) error {
	e, err := newEngine(iniPath, presetDir, level, log)
	if err != nil {
		return err
	}

	if _, err := e.net.CreateNetwork("Demo Home", masterFID); err != nil {
		return err
	}
	for id, dest := range map[filter.ID]host.FormID{
		"weapons": rackFID,
		"books":   shelfFID,
		"food":    pantryFID,
	} {
		if err := e.net.SetStageDestination("Demo Home", id, dest); err != nil {
			return err
		}
	}
	e.net.SetCatchAll("Demo Home", sellFID)
	e.net.TagContainer(rackFID, "The Armory")
	if err := e.net.SetSellContainer(sellFID); err != nil {
		return err
	}

	n := e.net.FindNetwork("Demo Home")
	pred, err := e.dist.Predict(n)
	if err != nil {
		return err
	}
	for i, s := range n.Stages {
		fmt.Printf("stage %-18s -> %-12s predicted %d\n",
			s.Filter, e.world.ContainerName(s.Container), pred.FilterCounts[i])
	}
	fmt.Printf("catch-all predicted %d\n", pred.CatchAllCount)

	res, err := e.dist.Distribute(n)
	if err != nil {
		return err
	}
	fmt.Printf("distributed %d items (%d to catch-all, %d skipped)\n",
		res.TotalItems, res.CatchAllMoved, res.SkippedUnavailable)

	if err := e.sales.RegisterVendor(npcFID, facFID, "Belethor", "General Goods", 0); err != nil {
		return err
	}
	for day := 1; day <= 3; day++ {
		e.world.AdvanceHours(24)
		e.sales.Tick(e.world.GameHours())
	}
	for _, tx := range e.sales.Receipts() {
		fmt.Printf("receipt t=%-6.1f item=%s qty=%d gold=%d\n",
			tx.GameTime, tx.Item, tx.Quantity, tx.TotalGold)
	}
	fmt.Printf("player gold: %d\n", e.world.Gold())

	store, err := cosave.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveSlot(slot, e.saves); err != nil {
		return err
	}
	raw, err := store.RawSlot(slot)
	if err != nil {
		return err
	}
	fmt.Printf("saved slot %q (%d bytes) to %s\n", slot, len(raw), dbPath)

	// Reload the slot the way the host would on a game load, then run
	// post-load housekeeping off the deferred-task queue.
	if err := store.LoadSlot(slot, e.saves, nil); err != nil {
		return err
	}
	e.postLoad()
	e.world.RunDeferred()

	e.pickCtx.set(n.Master)
	for _, entry := range e.pick.BuildPickerList(0) {
		fmt.Printf("picker [%s] %-16s %s\n", entry.Group, entry.Name, entry.Location)
	}
	return nil
}
