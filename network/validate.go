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

// Counts reports what a validation pass dropped, for user-visible
// reporting after load.
type Counts struct {
	PrunedNetworks int
	PrunedTags     int
	PrunedFilters  int
	PrunedSell     int
}

// Empty reports whether nothing was dropped.
func (c Counts) Empty() bool {
	return c == Counts{}
}

func (c *Counts) add(o Counts) {
	c.PrunedNetworks += o.PrunedNetworks
	c.PrunedTags += o.PrunedTags
	c.PrunedFilters += o.PrunedFilters
	c.PrunedSell += o.PrunedSell
}

// ValidateNetworks resolves every persisted FormID and drops whatever
// no longer exists: whole networks when the master is gone, individual
// stages, tags, and the sell designation otherwise.  Run once after
// load; this is the only time saved state is deleted without explicit
// user action.  The returned counts include records dropped during the
// cosave load itself.
func (m *Manager) ValidateNetworks() Counts {
	counts := m.loadDrops
	m.loadDrops = Counts{}

	kept := m.networks[:0]
	for _, n := range m.networks {
		if n.Master == 0 || !m.res.ResolveForm(n.Master) {
			counts.PrunedNetworks++
			m.log.Warn("dropping network with missing master", "name", n.Name, "master", n.Master)
			continue
		}
		stages := n.Stages[:0]
		for _, s := range n.Stages {
			if _, have := m.reg.Get(s.Filter); !have {
				counts.PrunedFilters++
				m.log.Warn("dropping stage with unknown filter", "network", n.Name, "filter", s.Filter)
				continue
			}
			if s.Container != 0 && s.Container != n.Master && !m.res.ResolveForm(s.Container) {
				counts.PrunedFilters++
				m.log.Warn("dropping stage with missing container",
					"network", n.Name, "filter", s.Filter, "container", s.Container)
				continue
			}
			stages = append(stages, s)
		}
		n.Stages = stages
		if n.CatchAll != 0 && n.CatchAll != n.Master && !m.res.ResolveForm(n.CatchAll) {
			counts.PrunedFilters++
			n.CatchAll = 0
		}
		ws := n.WhooshFilters[:0]
		for _, id := range n.WhooshFilters {
			if root, have := m.reg.Root(id); have && root == id {
				ws = append(ws, id)
			}
		}
		n.WhooshFilters = ws
		n.repairFamilyRoots(m.reg)
		kept = append(kept, n)
	}
	m.networks = kept

	for fid := range m.tags {
		if !m.res.ResolveForm(fid) {
			counts.PrunedTags++
			delete(m.tags, fid)
		}
	}

	if m.sell != 0 && !m.res.ResolveForm(m.sell) {
		counts.PrunedSell++
		m.sell = 0
	}

	if !counts.Empty() {
		m.log.Info("validation pruned saved state",
			"networks", counts.PrunedNetworks,
			"tags", counts.PrunedTags,
			"filters", counts.PrunedFilters,
			"sell", counts.PrunedSell)
	}
	return counts
}
