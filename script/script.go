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

// Package script exposes the engine to the host's scripting layer as a
// flat registry of functions over primitive arguments.  Failures come
// back as false/empty returns plus a log line, never as exceptions.
package script

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dop251/goja"

	"github.com/slid-mod/slid/containers"
	"github.com/slid-mod/slid/distrib"
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/network"
	"github.com/slid-mod/slid/preset"
	"github.com/slid-mod/slid/sales"
	"github.com/slid-mod/slid/settings"
	"github.com/slid-mod/slid/vendors"
)

// Deps is everything the surface fronts.  Names may be nil when the
// host cannot report plugin names; exportPreset then returns "".
// PickFor points the picker's Special source at a network's master
// before a listContainers call.
type Deps struct {
	Net      *network.Manager
	Dist     *distrib.Distributor
	Ven      *vendors.Registry
	Sales    *sales.Processor
	Settings *settings.Settings
	Pick     *containers.Registry
	PickFor  func(host.FormID)
	Clock    host.Clock
	Names    host.PluginNames
	Log      *slog.Logger
}

// Surface owns the function registry and a goja runtime with the
// registry installed as the global `slid` object.
type Surface struct {
	deps Deps
	log  *slog.Logger
	fns  map[string]interface{}
	vm   *goja.Runtime
}

func New(d Deps) *Surface {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Surface{deps: d, log: log.With("component", "script")}
	s.fns = s.registry()
	s.vm = goja.New()
	s.Bind(s.vm)
	return s
}

// Bind installs the registry as the global `slid` object on a runtime.
// The surface's own runtime gets this at construction; hosts with their
// own VM call it directly.
func (s *Surface) Bind(vm *goja.Runtime) {
	vm.Set("slid", s.fns)
}

// Functions returns the flat name-to-function registry, for hosts that
// bind it without goja.
func (s *Surface) Functions() map[string]interface{} { return s.fns }

// Run evaluates one script (console input, mostly).
func (s *Surface) Run(src string) (goja.Value, error) {
	return s.vm.RunString(src)
}

func (s *Surface) fail(op string, err error) bool {
	s.log.Warn("script call failed", "op", op, "error", err)
	return false
}

func (s *Surface) registry() map[string]interface{} {
	n := s.deps.Net
	return map[string]interface{}{
		// Network CRUD.
		"createNetwork": func(name string, master int64) bool {
			if _, err := n.CreateNetwork(name, host.FormID(master)); err != nil {
				return s.fail("createNetwork", err)
			}
			return true
		},
		"removeNetwork": func(name string) bool {
			if err := n.RemoveNetwork(name); err != nil {
				return s.fail("removeNetwork", err)
			}
			return true
		},
		"listNetworks": func() []string {
			var acc []string
			for _, nw := range n.Networks() {
				acc = append(acc, nw.Name)
			}
			return acc
		},
		"setStage": func(name, filterID string, dest int64) bool {
			err := n.SetStageDestination(name, filter.ID(filterID), host.FormID(dest))
			if err != nil {
				return s.fail("setStage", err)
			}
			return true
		},
		"removeStage": func(name, filterID string) bool {
			if err := n.RemoveStage(name, filter.ID(filterID)); err != nil {
				return s.fail("removeStage", err)
			}
			return true
		},
		"setCatchAll": func(name string, dest int64) bool {
			if err := n.SetCatchAll(name, host.FormID(dest)); err != nil {
				return s.fail("setCatchAll", err)
			}
			return true
		},
		"setWhoosh": func(name string, roots []string) bool {
			ids := make([]filter.ID, len(roots))
			for i, r := range roots {
				ids[i] = filter.ID(r)
			}
			if err := n.SetWhooshConfig(name, ids); err != nil {
				return s.fail("setWhoosh", err)
			}
			return true
		},

		// Tag CRUD.
		"tagContainer": func(fid int64, name string) bool {
			if err := n.TagContainer(host.FormID(fid), name); err != nil {
				return s.fail("tagContainer", err)
			}
			return true
		},
		"untagContainer": func(fid int64) {
			n.UntagContainer(host.FormID(fid))
		},
		"getTag": func(fid int64) string {
			name, _ := n.Tag(host.FormID(fid))
			return name
		},

		// Sell container.
		"setSellContainer": func(fid int64) bool {
			if err := n.SetSellContainer(host.FormID(fid)); err != nil {
				return s.fail("setSellContainer", err)
			}
			return true
		},
		"clearSellContainer": func() { n.ClearSellContainer() },

		// Distributor.
		"sort": func(name string) bool {
			nw := n.FindNetwork(name)
			if nw == nil {
				return s.fail("sort", network.ErrNotFound)
			}
			if _, err := s.deps.Dist.Distribute(nw); err != nil {
				return s.fail("sort", err)
			}
			return true
		},
		"sweep": func(name string) bool {
			nw := n.FindNetwork(name)
			if nw == nil {
				return s.fail("sweep", network.ErrNotFound)
			}
			if _, err := s.deps.Dist.GatherToMaster(nw, n.SellContainer()); err != nil {
				return s.fail("sweep", err)
			}
			return true
		},
		"whoosh": func(name string) bool {
			nw := n.FindNetwork(name)
			if nw == nil {
				return s.fail("whoosh", network.ErrNotFound)
			}
			if _, err := s.deps.Dist.Whoosh(nw); err != nil {
				return s.fail("whoosh", err)
			}
			return true
		},
		"predict": func(name string) map[string]interface{} {
			nw := n.FindNetwork(name)
			if nw == nil {
				s.fail("predict", network.ErrNotFound)
				return nil
			}
			pred, err := s.deps.Dist.Predict(nw)
			if err != nil {
				s.fail("predict", err)
				return nil
			}
			return map[string]interface{}{
				"filterCounts": pred.FilterCounts,
				"catchAll":     pred.CatchAllCount,
				"origin":       pred.OriginCount,
			}
		},

		// Vendors.
		"registerVendor": func(npc, faction int64, name, store string) bool {
			err := s.deps.Sales.RegisterVendor(host.FormID(npc), host.FormID(faction),
				name, store, s.now())
			if err != nil {
				return s.fail("registerVendor", err)
			}
			return true
		},
		"cancelVendor": func(npc int64) bool {
			if err := s.deps.Sales.CancelVendor(host.FormID(npc)); err != nil {
				return s.fail("cancelVendor", err)
			}
			return true
		},
		"investVendor": func(npc int64, invested bool) bool {
			if err := s.deps.Ven.SetInvested(host.FormID(npc), invested); err != nil {
				return s.fail("investVendor", err)
			}
			return true
		},
		"setVendorSchedule": func(npc int64, expr string) bool {
			if err := s.deps.Ven.SetSchedule(host.FormID(npc), expr); err != nil {
				return s.fail("setVendorSchedule", err)
			}
			return true
		},

		// Settings.
		"getSetting": func(key string) string { return s.getSetting(key) },
		"setSetting": func(key, value string) bool { return s.setSetting(key, value) },

		// Presets.
		"listPresets": func() []string {
			var acc []string
			for _, p := range n.Presets() {
				acc = append(acc, p.Name)
			}
			return acc
		},
		"activatePreset": func(name string) string {
			created, conflict, err := n.ActivatePreset(name)
			if err != nil {
				s.fail("activatePreset", err)
				return ""
			}
			if conflict != "" {
				s.log.Warn("preset master already in use", "preset", name, "network", conflict)
				return ""
			}
			return created.Name
		},
		"exportPreset": func(name string) string { return s.exportPreset(name) },

		// Destination picker.
		"listContainers":   func(name string) []map[string]interface{} { return s.listContainers(name) },
		"resolveContainer": func(fid int64) map[string]interface{} { return s.resolveContainer(host.FormID(fid)) },
		"countItems":       func(fid int64) int { return s.countItems(host.FormID(fid)) },

		// Diagnostics.
		"dumpNetworks": func() { s.dumpNetworks() },
		"dumpVendors":  func() { s.deps.Ven.Dump() },
		"dumpLedger":   func() { s.dumpLedger() },
	}
}

func (s *Surface) now() float64 {
	return s.deps.Clock.GameHours()
}

func (s *Surface) dumpNetworks() {
	for _, nw := range s.deps.Net.Networks() {
		s.log.Info("network",
			"name", nw.Name,
			"master", nw.Master.String(),
			"stages", len(nw.Stages),
			"catchAll", nw.CatchAll.String(),
			"whooshConfigured", nw.WhooshConfigured)
	}
}

// listContainers builds the destination picker for a network: every
// candidate container across the registered sources, in source
// priority order, keyed for the UI.
func (s *Surface) listContainers(name string) []map[string]interface{} {
	if s.deps.Pick == nil {
		s.fail("listContainers", fmt.Errorf("no container registry"))
		return nil
	}
	nw := s.deps.Net.FindNetwork(name)
	if nw == nil {
		s.fail("listContainers", fmt.Errorf("no network %q", name))
		return nil
	}
	if s.deps.PickFor != nil {
		s.deps.PickFor(nw.Master)
	}
	entries := s.deps.Pick.BuildPickerList(0)
	acc := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		acc = append(acc, map[string]interface{}{
			"formId":   int64(e.FormID),
			"name":     e.Name,
			"location": e.Location,
			"group":    e.Group,
		})
	}
	return acc
}

func (s *Surface) resolveContainer(fid host.FormID) map[string]interface{} {
	if s.deps.Pick == nil {
		s.fail("resolveContainer", fmt.Errorf("no container registry"))
		return nil
	}
	info := s.deps.Pick.Resolve(fid)
	return map[string]interface{}{
		"name":      info.Name,
		"location":  info.Location,
		"available": info.Available,
	}
}

func (s *Surface) countItems(fid host.FormID) int {
	if s.deps.Pick == nil {
		return 0
	}
	return s.deps.Pick.CountItems(fid)
}

// exportPreset renders a live network as portable preset INI text.
func (s *Surface) exportPreset(name string) string {
	if s.deps.Names == nil {
		s.fail("exportPreset", fmt.Errorf("host reports no plugin names"))
		return ""
	}
	nw := s.deps.Net.FindNetwork(name)
	if nw == nil {
		s.fail("exportPreset", fmt.Errorf("no network %q", name))
		return ""
	}
	var buf bytes.Buffer
	if err := preset.NewExporter(s.deps.Names).Export(&buf, s.deps.Net, nw); err != nil {
		s.fail("exportPreset", err)
		return ""
	}
	return buf.String()
}

func (s *Surface) dumpLedger() {
	for _, tx := range s.deps.Sales.Receipts() {
		s.log.Info("receipt",
			"vendor", tx.Vendor.String(),
			"item", tx.Item.String(),
			"qty", tx.Quantity,
			"gold", tx.TotalGold,
			"time", tx.GameTime)
	}
}

func (s *Surface) getSetting(key string) string {
	c := s.deps.Settings
	switch key {
	case "bModEnabled":
		return boolStr(c.ModEnabled)
	case "bDebugLogging":
		return boolStr(c.DebugLogging)
	case "bSummonEnabled":
		return boolStr(c.SummonEnabled)
	case "bIncludeUnlinkedContainers":
		return boolStr(c.IncludeUnlinkedContainers)
	case "fSellIntervalHours":
		return floatStr(c.SellIntervalHours)
	case "iSellBatchSize":
		return strconv.Itoa(c.SellBatchSize)
	case "fSellPricePercent":
		return floatStr(c.SellPricePercent)
	case "fVendorIntervalHours":
		return floatStr(c.VendorIntervalHours)
	case "iVendorBatchSize":
		return strconv.Itoa(c.VendorBatchSize)
	case "fVendorPricePercent":
		return floatStr(c.VendorPricePercent)
	case "iVendorCost":
		return strconv.Itoa(c.VendorCost)
	case "sSellSchedule":
		return c.SellSchedule
	}
	s.fail("getSetting", fmt.Errorf("unknown setting %q", key))
	return ""
}

func (s *Surface) setSetting(key, value string) bool {
	set := func(fn func(*settings.Settings)) bool {
		if err := s.deps.Settings.Set(fn); err != nil {
			return s.fail("setSetting", err)
		}
		// The scheduler reads its tuning from settings; keep it hot.
		if err := s.deps.Sales.SetConfig(s.deps.Settings.SalesConfig()); err != nil {
			return s.fail("setSetting", err)
		}
		return true
	}

	parseErr := fmt.Errorf("bad value %q for %q", value, key)
	switch key {
	case "bModEnabled", "bDebugLogging", "bSummonEnabled", "bIncludeUnlinkedContainers":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return s.fail("setSetting", parseErr)
		}
		return set(func(c *settings.Settings) {
			switch key {
			case "bModEnabled":
				c.ModEnabled = b
			case "bDebugLogging":
				c.DebugLogging = b
			case "bSummonEnabled":
				c.SummonEnabled = b
			case "bIncludeUnlinkedContainers":
				c.IncludeUnlinkedContainers = b
			}
		})
	case "fSellIntervalHours", "fSellPricePercent", "fVendorIntervalHours", "fVendorPricePercent":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return s.fail("setSetting", parseErr)
		}
		return set(func(c *settings.Settings) {
			switch key {
			case "fSellIntervalHours":
				c.SellIntervalHours = f
			case "fSellPricePercent":
				c.SellPricePercent = f
			case "fVendorIntervalHours":
				c.VendorIntervalHours = f
			case "fVendorPricePercent":
				c.VendorPricePercent = f
			}
		})
	case "iSellBatchSize", "iVendorBatchSize", "iVendorCost":
		i, err := strconv.Atoi(value)
		if err != nil {
			return s.fail("setSetting", parseErr)
		}
		return set(func(c *settings.Settings) {
			switch key {
			case "iSellBatchSize":
				c.SellBatchSize = i
			case "iVendorBatchSize":
				c.VendorBatchSize = i
			case "iVendorCost":
				c.VendorCost = i
			}
		})
	case "sSellSchedule":
		return set(func(c *settings.Settings) {
			c.SellSchedule = value
		})
	}
	return s.fail("setSetting", fmt.Errorf("unknown setting %q", key))
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func floatStr(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
