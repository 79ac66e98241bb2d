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

// Package network owns the mutable heart of the engine: networks,
// container tags, the sell container, and the preset library.
package network

import (
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

// Stage is one ordered entry of a network's pipeline.
//
// Container 0 means Pass (the stage is inert); Container equal to the
// network's master means Keep (visible in counts, moves nothing).
type Stage struct {
	Filter    filter.ID
	Container host.FormID
}

// Network is a master container, an ordered filter pipeline, and a
// catch-all destination.
type Network struct {
	Name     string
	Master   host.FormID
	Stages   []Stage
	CatchAll host.FormID

	// WhooshFilters is the subset of family roots eligible for
	// drain-to-master; empty unless configured.
	WhooshFilters    []filter.ID
	WhooshConfigured bool
}

// Copy makes a deep copy of the network.
func (n *Network) Copy() *Network {
	return &Network{
		Name:             n.Name,
		Master:           n.Master,
		Stages:           append([]Stage(nil), n.Stages...),
		CatchAll:         n.CatchAll,
		WhooshFilters:    append([]filter.ID(nil), n.WhooshFilters...),
		WhooshConfigured: n.WhooshConfigured,
	}
}

// StageIndex returns the index of the stage for a filter, or -1.
func (n *Network) StageIndex(id filter.ID) int {
	id = filter.Normalize(id)
	for i := range n.Stages {
		if n.Stages[i].Filter == id {
			return i
		}
	}
	return -1
}

// References reports whether any stage or the catch-all points at fid.
func (n *Network) References(fid host.FormID) bool {
	if fid == 0 {
		return false
	}
	if n.CatchAll == fid {
		return true
	}
	for i := range n.Stages {
		if n.Stages[i].Container == fid {
			return true
		}
	}
	return false
}

// Destinations returns every distinct non-zero container referenced by
// a stage or the catch-all, master excluded.
func (n *Network) Destinations() []host.FormID {
	seen := make(map[host.FormID]bool, len(n.Stages)+1)
	acc := make([]host.FormID, 0, len(n.Stages)+1)
	add := func(fid host.FormID) {
		if fid == 0 || fid == n.Master || seen[fid] {
			return
		}
		seen[fid] = true
		acc = append(acc, fid)
	}
	for i := range n.Stages {
		add(n.Stages[i].Container)
	}
	add(n.CatchAll)
	return acc
}

// repairFamilyRoots appends a Pass stage for every family root whose
// children appear in the pipeline without it.  Children specialise and
// the root catches the remainder, so a rootless child would silently
// change the family's semantics.
func (n *Network) repairFamilyRoots(reg *filter.Registry) {
	for i := 0; i < len(n.Stages); i++ {
		root, have := reg.Root(n.Stages[i].Filter)
		if !have || root == n.Stages[i].Filter {
			continue
		}
		if n.StageIndex(root) < 0 {
			n.Stages = append(n.Stages, Stage{Filter: root})
		}
	}
}

// EffectiveWhooshFilters returns the configured whoosh set, or the
// registry default when the user never configured one.  In the second
// case the caller is responsible for obtaining consent first.
func (n *Network) EffectiveWhooshFilters(reg *filter.Registry) []filter.ID {
	if n.WhooshConfigured {
		return append([]filter.ID(nil), n.WhooshFilters...)
	}
	return reg.DefaultWhooshFilters()
}
