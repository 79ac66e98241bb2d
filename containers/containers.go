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

// Package containers aggregates candidate destination containers from
// ordered sources.
package containers

import (
	"github.com/slid-mod/slid/host"
)

// DisplayInfo is what the UI shows for a container.
type DisplayInfo struct {
	Name      string
	Location  string
	Color     string
	Available bool
}

// PickerEntry is one row of the destination picker.  Group is a section
// header tag; the registry never orders entries within a group.
type PickerEntry struct {
	FormID   host.FormID
	Name     string
	Location string
	Group    string
}

// Source supplies candidate containers.  Sources must not mutate shared
// state during a query, and Resolve must return Available=false rather
// than failing when a form is unresolvable.
type Source interface {
	OwnsContainer(fid host.FormID) bool
	Resolve(fid host.FormID) DisplayInfo
	BuildPickerEntries(exclude host.FormID) []PickerEntry
}

type namedSource struct {
	group string
	src   Source
}

// Registry tries sources in registration order and returns the first
// hit.  Source order is fixed at startup.
type Registry struct {
	sources []namedSource
	inv     host.Inventories
}

// NewRegistry creates a registry that walks inventories through inv.
func NewRegistry(inv host.Inventories) *Registry {
	return &Registry{inv: inv}
}

// Register appends a source under a picker group tag.
func (r *Registry) Register(group string, src Source) {
	r.sources = append(r.sources, namedSource{group: group, src: src})
}

// OwnsContainer reports whether any source claims the form.
func (r *Registry) OwnsContainer(fid host.FormID) bool {
	for _, ns := range r.sources {
		if ns.src.OwnsContainer(fid) {
			return true
		}
	}
	return false
}

// Resolve returns display info from the first source that claims the
// form.  Unknown forms come back unavailable.
func (r *Registry) Resolve(fid host.FormID) DisplayInfo {
	for _, ns := range r.sources {
		if ns.src.OwnsContainer(fid) {
			return ns.src.Resolve(fid)
		}
	}
	return DisplayInfo{Available: false}
}

// BuildPickerList concatenates entries across sources, deduplicating by
// FormID (first source wins), and stamps each entry with its source's
// group.
func (r *Registry) BuildPickerList(exclude host.FormID) []PickerEntry {
	seen := make(map[host.FormID]bool, 32)
	acc := make([]PickerEntry, 0, 32)
	for _, ns := range r.sources {
		for _, e := range ns.src.BuildPickerEntries(exclude) {
			// FormID 0 is the synthetic Pass row; it may appear once.
			if seen[e.FormID] {
				continue
			}
			seen[e.FormID] = true
			e.Group = ns.group
			acc = append(acc, e)
		}
	}
	return acc
}

// CountItems sums the stack counts of a container's inventory, phantoms
// excluded.  Unresolvable containers count zero.
func (r *Registry) CountItems(fid host.FormID) int {
	stacks, err := r.inv.Inventory(fid)
	if err != nil {
		return 0
	}
	n := 0
	for _, s := range stacks {
		if host.Phantom(s.Item) {
			continue
		}
		n += s.Count
	}
	return n
}
