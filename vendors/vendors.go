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

// Package vendors tracks the merchants the player has registered as
// buyers.  The registry is guarded by its own mutex because the sales
// scheduler reads it off the main thread.
package vendors

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/slid-mod/slid/host"
)

var (
	ErrNotFound    = errors.New("vendor not registered")
	ErrNotAllowed  = errors.New("vendor not in the allowed set")
	ErrBadVendor   = errors.New("vendor form does not resolve")
	ErrBadSchedule = errors.New("bad visit schedule")
)

// Vendor is one registered merchant.  Times are game-hours.
type Vendor struct {
	NPC        host.FormID
	Faction    host.FormID
	Name       string
	Store      string
	Registered float32
	LastVisit  float32
	ItemsSold  uint32
	GoldEarned uint32
	Active     bool
	Invested   bool
}

// Registry is the process-wide vendor table.
type Registry struct {
	sync.Mutex

	res host.Resolver
	log *slog.Logger

	vendors []*Vendor // keyed by NPC, registration order

	// allowed, when non-empty, restricts registration to listed NPC
	// base forms.  Registered records are never touched by it.
	allowed map[host.FormID]bool

	// schedules holds optional per-vendor cron visit schedules.  They
	// come from runtime configuration and are not persisted.
	schedules map[host.FormID]*schedule

	jitter func() float64 // uniform in [0, 1)

	loadDrops int
}

type schedule struct {
	raw  string
	expr *cronexpr.Expression
}

// NewRegistry creates a registry resolving forms through res and
// logging through log (nil for the default logger).
func NewRegistry(res host.Resolver, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		res:       res,
		log:       log.With("component", "vendors"),
		schedules: map[host.FormID]*schedule{},
		jitter:    rand.Float64,
	}
}

// SetJitterSource replaces the randomness behind visit jitter.  Tests
// use this for determinism.
func (r *Registry) SetJitterSource(f func() float64) {
	r.Lock()
	r.jitter = f
	r.Unlock()
}

// jitterHours is uniform in [-6, +6] game-hours.  Without it, vendors
// registered in the same play session stay in lockstep forever.
func (r *Registry) jitterHours() float32 {
	return float32((r.jitter()*2 - 1) * 6)
}

// SetAllowed replaces the allowed-vendor set.  An empty set allows
// everyone.
func (r *Registry) SetAllowed(fids []host.FormID) {
	r.Lock()
	r.allowed = make(map[host.FormID]bool, len(fids))
	for _, fid := range fids {
		r.allowed[fid] = true
	}
	r.Unlock()
}

// Allowed reports whether npc may register.
func (r *Registry) Allowed(npc host.FormID) bool {
	r.Lock()
	defer r.Unlock()
	return r.allowedLocked(npc)
}

func (r *Registry) allowedLocked(npc host.FormID) bool {
	return len(r.allowed) == 0 || r.allowed[npc]
}

// Register adds a vendor, or reactivates a cancelled one.  The caller
// charges the registration fee only when reactivated is false.
func (r *Registry) Register(npc, faction host.FormID, name, store string, now float64) (v Vendor, reactivated bool, err error) {
	if !r.res.ResolveForm(npc) {
		return Vendor{}, false, fmt.Errorf("vendor %s: %w", npc, ErrBadVendor)
	}
	r.Lock()
	defer r.Unlock()
	if !r.allowedLocked(npc) {
		return Vendor{}, false, fmt.Errorf("vendor %s: %w", npc, ErrNotAllowed)
	}
	if have := r.findLocked(npc); have != nil {
		have.Active = true
		r.log.Info("vendor reactivated", "vendor", have.Name, "npc", npc.String())
		return *have, true, nil
	}
	nv := &Vendor{
		NPC:        npc,
		Faction:    faction,
		Name:       name,
		Store:      store,
		Registered: float32(now),
		LastVisit:  float32(now) + r.jitterHours(),
		Active:     true,
	}
	r.vendors = append(r.vendors, nv)
	r.log.Info("vendor registered", "vendor", name, "store", store, "npc", npc.String())
	return *nv, false, nil
}

func (r *Registry) findLocked(npc host.FormID) *Vendor {
	for _, v := range r.vendors {
		if v.NPC == npc {
			return v
		}
	}
	return nil
}

// Find returns a copy of the vendor registered for npc.
func (r *Registry) Find(npc host.FormID) (Vendor, bool) {
	r.Lock()
	defer r.Unlock()
	if v := r.findLocked(npc); v != nil {
		return *v, true
	}
	return Vendor{}, false
}

// Deactivate marks a vendor inactive, retaining its record.
func (r *Registry) Deactivate(npc host.FormID) error {
	r.Lock()
	defer r.Unlock()
	v := r.findLocked(npc)
	if v == nil {
		return fmt.Errorf("vendor %s: %w", npc, ErrNotFound)
	}
	v.Active = false
	r.log.Info("vendor cancelled", "vendor", v.Name, "npc", npc.String())
	return nil
}

// SetInvested flags a vendor the player has invested in, which raises
// their buying price.
func (r *Registry) SetInvested(npc host.FormID, invested bool) error {
	r.Lock()
	defer r.Unlock()
	v := r.findLocked(npc)
	if v == nil {
		return fmt.Errorf("vendor %s: %w", npc, ErrNotFound)
	}
	v.Invested = invested
	return nil
}

// RecordSale folds a completed sale into the vendor's totals and
// advances the visit clock (with jitter).
func (r *Registry) RecordSale(npc host.FormID, items, gold uint32, now float64) error {
	r.Lock()
	defer r.Unlock()
	v := r.findLocked(npc)
	if v == nil {
		return fmt.Errorf("vendor %s: %w", npc, ErrNotFound)
	}
	v.ItemsSold += items
	v.GoldEarned += gold
	v.LastVisit = float32(now) + r.jitterHours()
	return nil
}

// SetSchedule attaches a cron visit schedule to a vendor, replacing
// the interval rule.  An empty expression removes the schedule.
func (r *Registry) SetSchedule(npc host.FormID, expr string) error {
	r.Lock()
	defer r.Unlock()
	if r.findLocked(npc) == nil {
		return fmt.Errorf("vendor %s: %w", npc, ErrNotFound)
	}
	if expr == "" {
		delete(r.schedules, npc)
		return nil
	}
	parsed, err := cronexpr.Parse(expr)
	if err != nil {
		return fmt.Errorf("vendor %s: %q: %w", npc, expr, ErrBadSchedule)
	}
	r.schedules[npc] = &schedule{raw: expr, expr: parsed}
	return nil
}

// Schedule returns a vendor's cron expression, if any.
func (r *Registry) Schedule(npc host.FormID) (string, bool) {
	r.Lock()
	defer r.Unlock()
	s, have := r.schedules[npc]
	if !have {
		return "", false
	}
	return s.raw, true
}

// gameEpoch anchors the game calendar for cron evaluation: game-hour
// zero maps onto this instant.
var gameEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func hoursToTime(h float64) time.Time {
	return gameEpoch.Add(time.Duration(h * float64(time.Hour)))
}

// Due returns copies of the active vendors whose visit is due at now.
// A vendor with a cron schedule is due when the first firing after
// LastVisit has passed; otherwise the interval rule applies.
func (r *Registry) Due(now, intervalHours float64) []Vendor {
	r.Lock()
	defer r.Unlock()
	var due []Vendor
	for _, v := range r.vendors {
		if !v.Active {
			continue
		}
		if s, have := r.schedules[v.NPC]; have {
			next := s.expr.Next(hoursToTime(float64(v.LastVisit)))
			if !next.IsZero() && !next.After(hoursToTime(now)) {
				due = append(due, *v)
			}
			continue
		}
		if now-float64(v.LastVisit) >= intervalHours {
			due = append(due, *v)
		}
	}
	return due
}

// All returns a copy of the registry in registration order.
func (r *Registry) All() []Vendor {
	r.Lock()
	defer r.Unlock()
	acc := make([]Vendor, len(r.vendors))
	for i, v := range r.vendors {
		acc[i] = *v
	}
	return acc
}

// Clear drops every vendor and schedule.
func (r *Registry) Clear() {
	r.Lock()
	r.vendors = nil
	r.schedules = map[host.FormID]*schedule{}
	r.Unlock()
}

// Validate prunes vendors whose base form no longer resolves and
// returns the total dropped, including records dropped during load.
func (r *Registry) Validate() int {
	r.Lock()
	defer r.Unlock()
	dropped := r.loadDrops
	r.loadDrops = 0
	kept := r.vendors[:0]
	for _, v := range r.vendors {
		if !r.res.ResolveForm(v.NPC) {
			r.log.Warn("pruning vendor with dead base form", "vendor", v.Name, "npc", v.NPC.String())
			delete(r.schedules, v.NPC)
			dropped++
			continue
		}
		kept = append(kept, v)
	}
	r.vendors = kept
	return dropped
}

// Dump logs every vendor, for the diagnostic console.
func (r *Registry) Dump() {
	for _, v := range r.All() {
		r.log.Info("vendor",
			"npc", v.NPC.String(),
			"name", v.Name,
			"store", v.Store,
			"active", v.Active,
			"invested", v.Invested,
			"sold", v.ItemsSold,
			"earned", v.GoldEarned,
			"lastVisit", v.LastVisit)
	}
}
