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

package network

import (
	"fmt"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

// PresetDest says where a preset filter routes.
type PresetDest int

const (
	PresetPass PresetDest = iota
	PresetKeep
	PresetContainer
)

// PresetFilter is one declarative stage of a preset.
type PresetFilter struct {
	Filter filter.ID
	Dest   PresetDest

	// Plugin-relative container reference, used when Dest is
	// PresetContainer.  Resolved is 0 when the plugin is absent.
	Plugin   string
	Local    uint32
	Resolved host.FormID
}

// PresetTag is a declarative container tag.
type PresetTag struct {
	Plugin   string
	Local    uint32
	Resolved host.FormID
	Name     string
}

// Preset is a declarative network template parsed from an INI file.
// Presets are read-only; activation deep-copies into a live network.
type Preset struct {
	Name          string
	Description   string
	RequirePlugin string
	UserGenerated bool

	MasterPlugin string
	MasterLocal  uint32

	// ResolvedMaster is filled at load time; 0 when the master's
	// plugin is absent this session.
	ResolvedMaster host.FormID

	// Optional sell-container suggestion.  Applied on merge only
	// when the session has none yet.
	SellPlugin   string
	SellLocal    uint32
	ResolvedSell host.FormID

	Filters []PresetFilter
	Tags    []PresetTag
	Whoosh  []filter.ID
}

// Available reports whether the preset can be activated this session.
func (p *Preset) Available() bool {
	return p.ResolvedMaster != 0
}

// SetPresets replaces the preset library (explicit reload).
func (m *Manager) SetPresets(ps []*Preset) {
	m.presets = ps
}

// Presets returns the preset library.
func (m *Manager) Presets() []*Preset {
	return append([]*Preset(nil), m.presets...)
}

// FindPreset returns the preset with the given name, or nil.
func (m *Manager) FindPreset(name string) *Preset {
	for _, p := range m.presets {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ActivatePreset deep-copies a preset into a new network.  When some
// network already holds the preset's master, its name is returned as
// the conflict and nothing is mutated.
func (m *Manager) ActivatePreset(name string) (created *Network, conflict string, err error) {
	p := m.FindPreset(name)
	if p == nil {
		return nil, "", fmt.Errorf("preset %q: %w", name, ErrNotFound)
	}
	if !p.Available() {
		return nil, "", fmt.Errorf("preset %q: master %s|0x%06X does not resolve: %w",
			name, p.MasterPlugin, p.MasterLocal, ErrBadContainer)
	}
	if existing := m.FindNetworkByMaster(p.ResolvedMaster); existing != nil {
		return nil, existing.Name, nil
	}

	netName := p.Name
	for i := 2; m.FindNetwork(netName) != nil; i++ {
		netName = fmt.Sprintf("%s (%d)", p.Name, i)
	}

	n, err := m.CreateNetwork(netName, p.ResolvedMaster)
	if err != nil {
		return nil, "", err
	}

	for _, pf := range p.Filters {
		var dest host.FormID
		switch pf.Dest {
		case PresetKeep:
			dest = n.Master
		case PresetContainer:
			if pf.Resolved == 0 {
				// Plugin absent; the stage stays unlinked.
				continue
			}
			dest = pf.Resolved
		}
		if err := m.SetStageDestination(netName, pf.Filter, dest); err != nil {
			m.log.Warn("preset stage skipped", "preset", name, "filter", pf.Filter, "error", err)
		}
	}

	if len(p.Whoosh) > 0 {
		if err := m.SetWhooshConfig(netName, p.Whoosh); err != nil {
			m.log.Warn("preset whoosh skipped", "preset", name, "error", err)
		}
	}

	m.log.Info("preset activated", "preset", name, "network", netName)
	return n, "", nil
}
