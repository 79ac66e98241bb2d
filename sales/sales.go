/* Copyright 2023 The SLID Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package sales runs the game-hour sell scheduler: it drains the sell
// container on an interval and walks due vendors past it, crediting the
// player and keeping a receipt ledger.
package sales

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/network"
	"github.com/slid-mod/slid/vendors"
)

// Config is the scheduler's tuning block, loaded from settings.
type Config struct {
	SellIntervalHours float64
	SellBatchSize     int
	SellPricePercent  float64

	VendorIntervalHours float64
	VendorBatchSize     int
	VendorPricePercent  float64

	// VendorCost is the gold charged to register a vendor.  Half is
	// refunded on cancellation.
	VendorCost int

	// SellSchedule optionally replaces SellIntervalHours with a cron
	// expression over the game calendar.
	SellSchedule string
}

// DefaultConfig mirrors the shipped settings file.
func DefaultConfig() Config {
	return Config{
		SellIntervalHours:   24,
		SellBatchSize:       10,
		SellPricePercent:    0.5,
		VendorIntervalHours: 24,
		VendorBatchSize:     5,
		VendorPricePercent:  0.5,
		VendorCost:          500,
	}
}

// Transaction is one receipt.  Vendor is 0 for plain sell-container
// sales.  Times are game-hours.
type Transaction struct {
	Vendor    host.FormID
	Item      host.FormID
	Quantity  uint32
	UnitPrice uint32
	TotalGold uint32
	GameTime  float32
}

// Processor drives the sell and vendor ticks.  It runs on the host's
// main thread; the vendor registry carries its own lock.
type Processor struct {
	cfg      Config
	sellCron *cronexpr.Expression

	net    *network.Manager
	ven    *vendors.Registry
	freg   *filter.Registry
	inv    host.Inventories
	mov    host.Mover
	forms  host.Forms
	ledger host.Ledger
	log    *slog.Logger

	suspended    int // menu nesting depth
	lastSellTick float64
	receipts     []Transaction
}

// Deps bundles the host seams the processor needs.
type Deps struct {
	Net    *network.Manager
	Ven    *vendors.Registry
	Filter *filter.Registry
	Inv    host.Inventories
	Mov    host.Mover
	Forms  host.Forms
	Ledger host.Ledger
	Log    *slog.Logger
}

func New(d Deps, cfg Config) (*Processor, error) {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	p := &Processor{
		net:    d.Net,
		ven:    d.Ven,
		freg:   d.Filter,
		inv:    d.Inv,
		mov:    d.Mov,
		forms:  d.Forms,
		ledger: d.Ledger,
		log:    log.With("component", "sales"),
	}
	if err := p.SetConfig(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// SetConfig swaps the tuning block, parsing the cron schedule if one is
// set.
func (p *Processor) SetConfig(cfg Config) error {
	p.sellCron = nil
	if cfg.SellSchedule != "" {
		expr, err := cronexpr.Parse(cfg.SellSchedule)
		if err != nil {
			return fmt.Errorf("sales: sell schedule %q: %w", cfg.SellSchedule, err)
		}
		p.sellCron = expr
	}
	p.cfg = cfg
	return nil
}

func (p *Processor) Config() Config { return p.cfg }

// MenuOpen suspends ticks; MenuClose resumes them.  Opens nest.
func (p *Processor) MenuOpen() { p.suspended++ }

func (p *Processor) MenuClose() {
	if p.suspended > 0 {
		p.suspended--
	}
}

// gameEpoch anchors the game calendar for cron evaluation; game-hour
// zero is this instant.
var gameEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func hoursToTime(h float64) time.Time {
	return gameEpoch.Add(time.Duration(h * float64(time.Hour)))
}

// Tick runs the sell-container pass and then the vendor pass.  Called
// by the host's time-elapsed signal.
func (p *Processor) Tick(now float64) {
	if p.suspended > 0 {
		return
	}
	p.sellTick(now)
	p.vendorTick(now)
}

func (p *Processor) sellDue(now float64) bool {
	if p.sellCron != nil {
		next := p.sellCron.Next(hoursToTime(p.lastSellTick))
		return !next.IsZero() && !next.After(hoursToTime(now))
	}
	return now-p.lastSellTick >= p.cfg.SellIntervalHours
}

func (p *Processor) sellTick(now float64) {
	if !p.sellDue(now) {
		return
	}
	sell := p.net.SellContainer()
	if sell == 0 {
		return
	}
	stacks, err := p.sellableStacks(sell, nil)
	if err != nil {
		// No advancement: the interval must not be silently skipped.
		p.log.Warn("sell container unavailable, tick deferred", "container", sell)
		return
	}
	sold, gold := p.sellStacks(sell, 0, stacks, p.cfg.SellBatchSize, p.cfg.SellPricePercent, now)
	p.lastSellTick = now
	if sold > 0 {
		p.log.Info("sell tick", "items", sold, "gold", gold)
	}
}

func (p *Processor) vendorTick(now float64) {
	due := p.ven.Due(now, p.cfg.VendorIntervalHours)
	if len(due) == 0 {
		return
	}
	sell := p.net.SellContainer()
	if sell == 0 {
		return
	}
	for _, v := range due {
		roots := vendors.BuyFilters(p.forms, v.Faction)
		if len(roots) == 0 {
			// Buys nothing; advance the visit clock anyway.
			p.ven.RecordSale(v.NPC, 0, 0, now)
			continue
		}
		stacks, err := p.sellableStacks(sell, func(it host.Item) bool {
			return vendors.Accepts(p.freg, roots, it)
		})
		if err != nil {
			p.log.Warn("sell container unavailable, vendor visit deferred",
				"vendor", v.Name, "container", sell)
			return
		}
		pct := p.cfg.VendorPricePercent
		if v.Invested {
			pct *= 1.1
		}
		sold, gold := p.sellStacks(sell, v.NPC, stacks, p.cfg.VendorBatchSize, pct, now)
		if err := p.ven.RecordSale(v.NPC, uint32(sold), uint32(gold), now); err != nil {
			p.log.Warn("vendor vanished mid-tick", "vendor", v.Name, "error", err)
		}
		if sold > 0 {
			p.log.Info("vendor visit", "vendor", v.Name, "items", sold, "gold", gold)
		}
	}
}

// sellableStacks lists non-phantom stacks, optionally filtered, in the
// deterministic sale order: base value descending, FormID ascending.
func (p *Processor) sellableStacks(container host.FormID, accept func(host.Item) bool) ([]host.Stack, error) {
	stacks, err := p.inv.Inventory(container)
	if err != nil {
		return nil, err
	}
	kept := stacks[:0]
	for _, s := range stacks {
		if host.Phantom(s.Item) || s.Count <= 0 {
			continue
		}
		if accept != nil && !accept(s.Item) {
			continue
		}
		kept = append(kept, s)
	}
	sort.Slice(kept, func(i, j int) bool {
		vi, vj := kept[i].Item.GoldValue(), kept[j].Item.GoldValue()
		if vi != vj {
			return vi > vj
		}
		return kept[i].Item.FormID() < kept[j].Item.FormID()
	})
	return kept, nil
}

// sellStacks removes up to batch units, credits the player, and writes
// one receipt per item sold.  A stack of N identical items drained in
// one tick yields N single-unit receipts.
func (p *Processor) sellStacks(container, vendor host.FormID, stacks []host.Stack, batch int, pct float64, now float64) (sold, gold int) {
	for _, s := range stacks {
		if sold >= batch {
			break
		}
		take := s.Count
		if sold+take > batch {
			take = batch - sold
		}
		unit := int(math.Floor(float64(s.Item.GoldValue()) * pct))
		if err := p.mov.RemoveItem(s.Item.FormID(), take, container); err != nil {
			p.log.Warn("removal failed, stack skipped",
				"item", s.Item.Name(), "container", container, "error", err)
			continue
		}
		for i := 0; i < take; i++ {
			p.receipts = append(p.receipts, Transaction{
				Vendor:    vendor,
				Item:      s.Item.FormID(),
				Quantity:  1,
				UnitPrice: uint32(unit),
				TotalGold: uint32(unit),
				GameTime:  float32(now),
			})
		}
		total := unit * take
		p.ledger.CreditGold(total)
		sold += take
		gold += total
	}
	return sold, gold
}

// Receipts returns the ledger ordered by game time ascending, ties in
// insertion order.
func (p *Processor) Receipts() []Transaction {
	acc := append([]Transaction(nil), p.receipts...)
	sort.SliceStable(acc, func(i, j int) bool {
		return acc[i].GameTime < acc[j].GameTime
	})
	return acc
}

// ClearReceipts empties the ledger (diagnostic surface).
func (p *Processor) ClearReceipts() { p.receipts = nil }

// RegisterVendor registers (or reactivates) a vendor, charging the
// registration fee for new registrations only.
func (p *Processor) RegisterVendor(npc, faction host.FormID, name, store string, now float64) error {
	_, reactivated, err := p.ven.Register(npc, faction, name, store, now)
	if err != nil {
		return err
	}
	if !reactivated {
		p.ledger.CreditGold(-p.cfg.VendorCost)
	}
	return nil
}

// CancelVendor deactivates a vendor and refunds half the registration
// cost.  The record survives for later reactivation.
func (p *Processor) CancelVendor(npc host.FormID) error {
	if err := p.ven.Deactivate(npc); err != nil {
		return err
	}
	p.ledger.CreditGold(p.cfg.VendorCost / 2)
	return nil
}
