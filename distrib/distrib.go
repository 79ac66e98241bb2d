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

// Package distrib evaluates and executes a network's pipeline.
//
// The match decision, per item stack, scanning stages in order: a Pass
// stage (container 0) is inert; otherwise the first stage whose filter
// matches claims the stack.  Unclaimed stacks fall to the catch-all,
// and a catch-all of 0 (or the master) keeps them where they are.
package distrib

import (
	"log/slog"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/network"
)

// Distributor runs pipelines against a host.  It holds no lock of its
// own: the caller holds the NetworkManager for the duration of any
// Distribute call, and all moves run on the host's main thread.
type Distributor struct {
	reg *filter.Registry
	inv host.Inventories
	mov host.Mover
	res host.Resolver
	log *slog.Logger
}

// New creates a distributor.
func New(reg *filter.Registry, inv host.Inventories, mov host.Mover, res host.Resolver, log *slog.Logger) *Distributor {
	if log == nil {
		log = slog.Default()
	}
	return &Distributor{
		reg: reg,
		inv: inv,
		mov: mov,
		res: res,
		log: log.With("component", "distrib"),
	}
}

// Prediction is what the pipeline would do right now.  It carries only
// numbers; presentation state belongs to the UI.
type Prediction struct {
	// FilterCounts[i] is the stack total destined for stage i.
	FilterCounts []int

	// ContestedCounts[i] is the stack total stage i matched but lost
	// to an earlier stage.
	ContestedCounts []int

	// ContestedBy[i] maps the winning stage index to the stack total
	// it took from stage i.
	ContestedBy []map[int]int

	// CatchAllCount is the stack total with no matching stage.
	CatchAllCount int

	// OriginCount is the stack total that stays in the master: Keep
	// destinations plus no-match when the catch-all keeps.
	OriginCount int
}

// Predict computes the distribution plan without touching inventories.
// Pure and re-entrant: identical inputs give identical results.
func (d *Distributor) Predict(n *network.Network) (*Prediction, error) {
	stacks, err := d.inv.Inventory(n.Master)
	if err != nil {
		return nil, err
	}

	p := &Prediction{
		FilterCounts:    make([]int, len(n.Stages)),
		ContestedCounts: make([]int, len(n.Stages)),
		ContestedBy:     make([]map[int]int, len(n.Stages)),
	}
	pass := d.reg.Evaluator().NewPass()

	for _, stack := range stacks {
		if host.Phantom(stack.Item) {
			continue
		}
		traits := pass.TraitsOf(stack.Item)

		winner := -1
		for i, s := range n.Stages {
			if s.Container == 0 {
				// Pass: inert for matching.
				continue
			}
			if !d.reg.MatchSet(s.Filter, traits) {
				continue
			}
			if winner < 0 {
				winner = i
				p.FilterCounts[i] += stack.Count
			} else {
				p.ContestedCounts[i] += stack.Count
				if p.ContestedBy[i] == nil {
					p.ContestedBy[i] = make(map[int]int, 2)
				}
				p.ContestedBy[i][winner] += stack.Count
			}
		}

		switch {
		case winner < 0:
			p.CatchAllCount += stack.Count
			if n.CatchAll == 0 || n.CatchAll == n.Master {
				p.OriginCount += stack.Count
			}
		case n.Stages[winner].Container == n.Master:
			// Keep: counted for the stage and for the origin.
			p.OriginCount += stack.Count
		}
	}
	return p, nil
}

// Result reports what Distribute actually moved.
type Result struct {
	// TotalItems is the stack total moved out of the master.
	TotalItems int

	// PerStageMoved[i] is the stack total moved to stage i's
	// destination.
	PerStageMoved []int

	// CatchAllMoved is the stack total moved to the catch-all.
	CatchAllMoved int

	// SkippedUnavailable is the stack total left in place because a
	// destination no longer resolves.
	SkippedUnavailable int
}

// Distribute executes the pipeline.  Phantoms are skipped; stacks whose
// destination is unavailable stay put and are surfaced in the result.
// A mid-pass resolution failure never aborts the pass.
func (d *Distributor) Distribute(n *network.Network) (*Result, error) {
	stacks, err := d.inv.Inventory(n.Master)
	if err != nil {
		return nil, err
	}

	res := &Result{PerStageMoved: make([]int, len(n.Stages))}
	pass := d.reg.Evaluator().NewPass()

	available := make(map[host.FormID]bool, 8)
	ok := func(fid host.FormID) bool {
		if have, cached := available[fid]; cached {
			return have
		}
		have := d.res.ResolveForm(fid)
		available[fid] = have
		if !have {
			d.log.Warn("destination unavailable", "network", n.Name, "container", fid)
		}
		return have
	}

	for _, stack := range stacks {
		if host.Phantom(stack.Item) {
			continue
		}
		traits := pass.TraitsOf(stack.Item)

		winner := -1
		for i, s := range n.Stages {
			if s.Container == 0 {
				continue
			}
			if d.reg.MatchSet(s.Filter, traits) {
				winner = i
				break
			}
		}

		var dest host.FormID
		switch {
		case winner >= 0:
			dest = n.Stages[winner].Container
		case n.CatchAll != 0:
			dest = n.CatchAll
		default:
			dest = n.Master
		}

		if dest == n.Master {
			// Keep: nothing moves.
			continue
		}
		if !ok(dest) {
			res.SkippedUnavailable += stack.Count
			continue
		}
		if err := d.mov.MoveStack(stack.Item.FormID(), stack.Count, n.Master, dest); err != nil {
			d.log.Warn("move failed", "network", n.Name,
				"item", stack.Item.FormID(), "dest", dest, "error", err)
			res.SkippedUnavailable += stack.Count
			continue
		}
		res.TotalItems += stack.Count
		if winner >= 0 {
			res.PerStageMoved[winner] += stack.Count
		} else {
			res.CatchAllMoved += stack.Count
		}
	}
	return res, nil
}

// GatherToMaster sweeps every container referenced by a stage or the
// catch-all (master and sell excluded) and moves all non-phantom items
// into the master.  Returns the stack total moved.
func (d *Distributor) GatherToMaster(n *network.Network, sell host.FormID) (int, error) {
	if !d.res.ResolveForm(n.Master) {
		return 0, host.ErrUnavailable
	}
	moved := 0
	for _, fid := range n.Destinations() {
		if fid == sell {
			continue
		}
		stacks, err := d.inv.Inventory(fid)
		if err != nil {
			d.log.Warn("gather: container unavailable", "network", n.Name, "container", fid)
			continue
		}
		for _, stack := range stacks {
			if host.Phantom(stack.Item) {
				continue
			}
			if err := d.mov.MoveStack(stack.Item.FormID(), stack.Count, fid, n.Master); err != nil {
				d.log.Warn("gather: move failed", "network", n.Name,
					"item", stack.Item.FormID(), "from", fid, "error", err)
				continue
			}
			moved += stack.Count
		}
	}
	return moved, nil
}

// Whoosh drains only matching items back to the master: for each
// whoosh-eligible filter, the container at its stage gives up the items
// that filter matches.  Returns the stack total moved.
func (d *Distributor) Whoosh(n *network.Network) (int, error) {
	if !d.res.ResolveForm(n.Master) {
		return 0, host.ErrUnavailable
	}
	moved := 0
	pass := d.reg.Evaluator().NewPass()
	for _, id := range n.EffectiveWhooshFilters(d.reg) {
		i := n.StageIndex(id)
		if i < 0 {
			continue
		}
		fid := n.Stages[i].Container
		if fid == 0 || fid == n.Master {
			continue
		}
		stacks, err := d.inv.Inventory(fid)
		if err != nil {
			d.log.Warn("whoosh: container unavailable", "network", n.Name, "container", fid)
			continue
		}
		for _, stack := range stacks {
			if host.Phantom(stack.Item) {
				continue
			}
			if !d.reg.MatchSet(id, pass.TraitsOf(stack.Item)) {
				continue
			}
			if err := d.mov.MoveStack(stack.Item.FormID(), stack.Count, fid, n.Master); err != nil {
				d.log.Warn("whoosh: move failed", "network", n.Name,
					"item", stack.Item.FormID(), "from", fid, "error", err)
				continue
			}
			moved += stack.Count
		}
	}
	return moved, nil
}
