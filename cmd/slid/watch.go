package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/sales"
	"github.com/slid-mod/slid/vendors"
)

// stateSnapshot is what a watch client sees each tick.
type stateSnapshot struct {
	GameHours float64             `json:"gameHours"`
	Gold      int                 `json:"gold"`
	Networks  []networkSnapshot   `json:"networks"`
	Vendors   []vendors.Vendor    `json:"vendors"`
	Receipts  []sales.Transaction `json:"receipts"`
}

type networkSnapshot struct {
	Name   string         `json:"name"`
	Master string         `json:"master"`
	Stages map[string]int `json:"stages"`
}

// runWatch serves live engine state over a websocket while the demo
// world plays itself: every wall second advances one game hour and
// runs the scheduler.
func runWatch(iniPath, addr string, level *slog.LevelVar, log *slog.Logger) error {
	e, err := newEngine(iniPath, "", level, log)
	if err != nil {
		return err
	}
	if _, err := e.net.CreateNetwork("Demo Home", masterFID); err != nil {
		return err
	}
	e.net.SetStageDestination("Demo Home", "weapons", rackFID)
	e.net.SetStageDestination("Demo Home", "food", pantryFID)
	if err := e.net.SetSellContainer(sellFID); err != nil {
		return err
	}
	e.sales.RegisterVendor(npcFID, facFID, "Belethor", "General Goods", 0)

	snapshot := func() stateSnapshot {
		snap := stateSnapshot{
			GameHours: e.world.GameHours(),
			Gold:      e.world.Gold(),
			Vendors:   e.ven.All(),
			Receipts:  e.sales.Receipts(),
		}
		for _, n := range e.net.Networks() {
			ns := networkSnapshot{
				Name:   n.Name,
				Master: n.Master.String(),
				Stages: map[string]int{},
			}
			for _, s := range n.Stages {
				ns.Stages[string(s.Filter)] = e.countFor(s.Container)
			}
			snap.Networks = append(snap.Networks, ns)
		}
		return snap
	}

	var upgrader websocket.Upgrader
	http.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer c.Close()
		log.Info("watch client connected", "remote", c.RemoteAddr().String())

		for range time.Tick(time.Second) {
			e.world.AdvanceHours(1)
			e.sales.Tick(e.world.GameHours())
			if _, err := e.dist.Distribute(e.net.FindNetwork("Demo Home")); err != nil {
				log.Warn("distribute failed", "error", err)
			}
			js, err := json.Marshal(snapshot())
			if err != nil {
				log.Warn("snapshot marshal failed", "error", err)
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, js); err != nil {
				log.Info("watch client gone", "error", err)
				return
			}
		}
	})

	log.Info("watch listening", "addr", addr, "path", "/watch")
	return http.ListenAndServe(addr, nil)
}

func (e *engine) countFor(fid host.FormID) int {
	if fid == 0 {
		return 0
	}
	return e.world.TotalCount(fid)
}
