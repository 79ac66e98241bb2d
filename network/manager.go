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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNameUsed      = errors.New("name already used")
	ErrBadMaster     = errors.New("container cannot be a master")
	ErrBadContainer  = errors.New("bad container")
	ErrMasterTag     = errors.New("masters cannot be tagged")
	ErrSellIsMaster  = errors.New("container is a network master")
	ErrDestTaken     = errors.New("destination already used by another stage")
	ErrUnknownFilter = errors.New("unknown filter")
)

// Manager owns all networks, tags, the sell container, and the preset
// library.
//
// Mutating operations are not internally synchronised beyond the
// embedded mutex: callers hold the Manager for the duration of any
// mutation or distribution pass, and all mutation happens on the host's
// main thread.  The bypass cell is the one cross-thread exception.
type Manager struct {
	sync.Mutex

	reg *filter.Registry
	res host.Resolver
	log *slog.Logger

	networks []*Network
	tags     map[host.FormID]string
	sell     host.FormID
	presets  []*Preset

	bypass atomic.Uint32

	loadDrops Counts
}

// NewManager creates an empty manager.
func NewManager(reg *filter.Registry, res host.Resolver, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		reg:  reg,
		res:  res,
		log:  log.With("component", "network"),
		tags: make(map[host.FormID]string, 16),
	}
}

// Registry returns the filter registry the manager validates against.
func (m *Manager) Registry() *filter.Registry {
	return m.reg
}

// CreateNetwork creates a network with the default pipeline: one
// unlinked (Pass) stage per family root, in taxonomy order.
func (m *Manager) CreateNetwork(name string, master host.FormID) (*Network, error) {
	if name == "" {
		return nil, fmt.Errorf("create network: empty name")
	}
	if m.FindNetwork(name) != nil {
		return nil, fmt.Errorf("create network %q: %w", name, ErrNameUsed)
	}
	if master == 0 || !m.res.ResolveForm(master) {
		return nil, fmt.Errorf("create network %q: %w", name, ErrBadContainer)
	}
	if m.FindNetworkByMaster(master) != nil {
		return nil, fmt.Errorf("create network %q: %w", name, ErrBadMaster)
	}
	if master == m.sell {
		return nil, fmt.Errorf("create network %q: master is the sell container: %w", name, ErrBadMaster)
	}

	roots := m.reg.FamilyRoots()
	stages := make([]Stage, 0, len(roots))
	for _, root := range roots {
		stages = append(stages, Stage{Filter: root})
	}
	n := &Network{Name: name, Master: master, Stages: stages}
	m.networks = append(m.networks, n)
	m.log.Info("network created", "name", name, "master", master)
	return n, nil
}

// RemoveNetwork deletes a network.  Tags are retained even when only
// this network referenced them.
func (m *Manager) RemoveNetwork(name string) error {
	for i, n := range m.networks {
		if n.Name == name {
			m.networks = append(m.networks[:i], m.networks[i+1:]...)
			m.log.Info("network removed", "name", name)
			return nil
		}
	}
	return fmt.Errorf("remove network %q: %w", name, ErrNotFound)
}

// FindNetwork returns the network with the given name, or nil.
func (m *Manager) FindNetwork(name string) *Network {
	for _, n := range m.networks {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FindNetworkByMaster returns the network whose master is fid, or nil.
func (m *Manager) FindNetworkByMaster(fid host.FormID) *Network {
	for _, n := range m.networks {
		if n.Master == fid {
			return n
		}
	}
	return nil
}

// Networks returns the networks in creation order.
func (m *Manager) Networks() []*Network {
	return append([]*Network(nil), m.networks...)
}

// TagContainer assigns a display name to a container.  Masters are
// never tagged.
func (m *Manager) TagContainer(fid host.FormID, name string) error {
	if fid == 0 || name == "" {
		return fmt.Errorf("tag: %w", ErrBadContainer)
	}
	if m.FindNetworkByMaster(fid) != nil {
		return fmt.Errorf("tag %v: %w", fid, ErrMasterTag)
	}
	m.tags[fid] = name
	return nil
}

// UntagContainer removes a container's tag.  It does not scrub stage
// references; callers that mean to sever the container entirely follow
// with ClearContainerReferences.
func (m *Manager) UntagContainer(fid host.FormID) {
	delete(m.tags, fid)
}

// Tag returns a container's tag, if any.
func (m *Manager) Tag(fid host.FormID) (string, bool) {
	name, have := m.tags[fid]
	return name, have
}

// Tags returns a copy of the tag map.
func (m *Manager) Tags() map[host.FormID]string {
	acc := make(map[host.FormID]string, len(m.tags))
	for fid, name := range m.tags {
		acc[fid] = name
	}
	return acc
}

// ClearContainerReferences zeroes every stage and catch-all pointing at
// fid across all networks.
func (m *Manager) ClearContainerReferences(fid host.FormID) {
	if fid == 0 {
		return
	}
	for _, n := range m.networks {
		for i := range n.Stages {
			if n.Stages[i].Container == fid {
				n.Stages[i].Container = 0
			}
		}
		if n.CatchAll == fid {
			n.CatchAll = 0
		}
	}
}

// SetSellContainer designates the session's sell container.  A
// container cannot be both a master and the sell container.
func (m *Manager) SetSellContainer(fid host.FormID) error {
	if fid == 0 || !m.res.ResolveForm(fid) {
		return fmt.Errorf("sell container: %w", ErrBadContainer)
	}
	if m.FindNetworkByMaster(fid) != nil {
		return fmt.Errorf("sell container %v: %w", fid, ErrSellIsMaster)
	}
	m.sell = fid
	m.log.Info("sell container set", "container", fid)
	return nil
}

// ClearSellContainer removes the designation.
func (m *Manager) ClearSellContainer() {
	m.sell = 0
}

// RestoreSellContainer reinstates the sell container from a save
// without resolution checks; ValidateNetworks reconciles later.
func (m *Manager) RestoreSellContainer(fid host.FormID) {
	m.sell = fid
}

// NoteSellDropped records that the saved sell container did not survive
// the load-order remap, for the post-load drop report.
func (m *Manager) NoteSellDropped() {
	m.loadDrops.PrunedSell++
}

// SellContainer returns the active sell container (0 = none).
func (m *Manager) SellContainer() host.FormID {
	return m.sell
}

// SetWhooshConfig marks the network configured and overwrites its
// whoosh set with the subset valid in the current registry.
func (m *Manager) SetWhooshConfig(name string, filters []filter.ID) error {
	n := m.FindNetwork(name)
	if n == nil {
		return fmt.Errorf("whoosh config %q: %w", name, ErrNotFound)
	}
	valid := make([]filter.ID, 0, len(filters))
	for _, id := range filters {
		id = filter.Normalize(id)
		if root, have := m.reg.Root(id); have && root == id {
			valid = append(valid, id)
		}
	}
	n.WhooshFilters = valid
	n.WhooshConfigured = true
	return nil
}

// SetStageDestination links a filter's stage to a container.  The stage
// is appended (with family-root repair) if the pipeline lacks it.
// Destination 0 is Pass; the master is Keep.
func (m *Manager) SetStageDestination(name string, id filter.ID, dest host.FormID) error {
	n := m.FindNetwork(name)
	if n == nil {
		return fmt.Errorf("set stage %q: %w", name, ErrNotFound)
	}
	id = filter.Normalize(id)
	if _, have := m.reg.Get(id); !have {
		return fmt.Errorf("set stage %q/%q: %w", name, id, ErrUnknownFilter)
	}
	if dest != 0 && dest != n.Master {
		if !m.res.ResolveForm(dest) {
			return fmt.Errorf("set stage %q/%q: %w", name, id, ErrBadContainer)
		}
		// No two stages may share a non-Keep destination.
		for i := range n.Stages {
			if n.Stages[i].Filter != id && n.Stages[i].Container == dest {
				return fmt.Errorf("set stage %q/%q: %w", name, id, ErrDestTaken)
			}
		}
	}
	if i := n.StageIndex(id); i >= 0 {
		n.Stages[i].Container = dest
	} else {
		n.Stages = append(n.Stages, Stage{Filter: id, Container: dest})
		n.repairFamilyRoots(m.reg)
	}
	return nil
}

// RemoveStage drops a filter's stage from the pipeline.
func (m *Manager) RemoveStage(name string, id filter.ID) error {
	n := m.FindNetwork(name)
	if n == nil {
		return fmt.Errorf("remove stage %q: %w", name, ErrNotFound)
	}
	i := n.StageIndex(id)
	if i < 0 {
		return fmt.Errorf("remove stage %q/%q: %w", name, id, ErrNotFound)
	}
	n.Stages = append(n.Stages[:i], n.Stages[i+1:]...)
	return nil
}

// MoveStage reorders a filter's stage to a new index.
func (m *Manager) MoveStage(name string, id filter.ID, to int) error {
	n := m.FindNetwork(name)
	if n == nil {
		return fmt.Errorf("move stage %q: %w", name, ErrNotFound)
	}
	from := n.StageIndex(id)
	if from < 0 {
		return fmt.Errorf("move stage %q/%q: %w", name, id, ErrNotFound)
	}
	if to < 0 || to >= len(n.Stages) {
		return fmt.Errorf("move stage %q/%q: index %d out of range", name, id, to)
	}
	s := n.Stages[from]
	n.Stages = append(n.Stages[:from], n.Stages[from+1:]...)
	n.Stages = append(n.Stages[:to], append([]Stage{s}, n.Stages[to:]...)...)
	return nil
}

// SetCatchAll sets the network's catch-all destination (0 or the
// master = Keep).
func (m *Manager) SetCatchAll(name string, dest host.FormID) error {
	n := m.FindNetwork(name)
	if n == nil {
		return fmt.Errorf("catch-all %q: %w", name, ErrNotFound)
	}
	if dest != 0 && dest != n.Master && !m.res.ResolveForm(dest) {
		return fmt.Errorf("catch-all %q: %w", name, ErrBadContainer)
	}
	n.CatchAll = dest
	return nil
}

// SetBypass arms the one-shot bypass cell.  Safe from any thread.
func (m *Manager) SetBypass(fid host.FormID) {
	m.bypass.Store(uint32(fid))
}

// TakeBypass drains the bypass cell.  At most one caller wins.
func (m *Manager) TakeBypass() (host.FormID, bool) {
	for {
		v := m.bypass.Load()
		if v == 0 {
			return 0, false
		}
		if m.bypass.CompareAndSwap(v, 0) {
			return host.FormID(v), true
		}
	}
}
