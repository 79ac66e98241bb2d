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

package containers

import (
	"github.com/slid-mod/slid/bus"
	"github.com/slid-mod/slid/host"
)

// Picker group tags for the built-in sources.
const (
	GroupSpecial = "Special"
	GroupTagged  = "Tagged"
	GroupNearby  = "Nearby"
)

// Display names for the synthetic rows.
const (
	PassName = "-- Pass --"
	KeepName = "-- Keep --"
)

// SpecialSource serves the synthetic rows: Pass, Keep (the current
// master), and the active sell container.  Master and Sell are read
// through funcs so the source never holds network state.
type SpecialSource struct {
	Master func() host.FormID
	Sell   func() host.FormID
	Names  host.Inventories
}

func (s *SpecialSource) master() host.FormID {
	if s.Master == nil {
		return 0
	}
	return s.Master()
}

func (s *SpecialSource) sell() host.FormID {
	if s.Sell == nil {
		return 0
	}
	return s.Sell()
}

func (s *SpecialSource) OwnsContainer(fid host.FormID) bool {
	if fid == 0 {
		return true
	}
	return fid == s.master() || (fid == s.sell() && fid != 0)
}

func (s *SpecialSource) Resolve(fid host.FormID) DisplayInfo {
	switch {
	case fid == 0:
		return DisplayInfo{Name: PassName, Available: true}
	case fid == s.master():
		return DisplayInfo{Name: KeepName, Color: "gold", Available: true}
	case fid == s.sell():
		name := s.Names.ContainerName(fid)
		if name == "" {
			return DisplayInfo{Available: false}
		}
		return DisplayInfo{Name: name + " (Sell)", Color: "green", Available: true}
	}
	return DisplayInfo{Available: false}
}

func (s *SpecialSource) BuildPickerEntries(exclude host.FormID) []PickerEntry {
	acc := []PickerEntry{{FormID: 0, Name: PassName}}
	if m := s.master(); m != 0 && m != exclude {
		acc = append(acc, PickerEntry{FormID: m, Name: KeepName})
	}
	if sc := s.sell(); sc != 0 && sc != exclude {
		acc = append(acc, PickerEntry{FormID: sc, Name: s.Names.ContainerName(sc) + " (Sell)"})
	}
	return acc
}

// TaggedSource serves the containers the player has named.
type TaggedSource struct {
	Tags     func() map[host.FormID]string
	Resolver host.Resolver
}

func (s *TaggedSource) OwnsContainer(fid host.FormID) bool {
	_, have := s.Tags()[fid]
	return have
}

func (s *TaggedSource) Resolve(fid host.FormID) DisplayInfo {
	name, have := s.Tags()[fid]
	if !have {
		return DisplayInfo{Available: false}
	}
	return DisplayInfo{
		Name:      name,
		Color:     "white",
		Available: s.Resolver.ResolveForm(fid),
	}
}

func (s *TaggedSource) BuildPickerEntries(exclude host.FormID) []PickerEntry {
	tags := s.Tags()
	acc := make([]PickerEntry, 0, len(tags))
	for fid, name := range tags {
		if fid == exclude || !s.Resolver.ResolveForm(fid) {
			continue
		}
		acc = append(acc, PickerEntry{FormID: fid, Name: name})
	}
	return acc
}

// ExternalSource serves containers exposed by a sister plugin through
// the message bus.
type ExternalSource struct {
	Plugin string
	Client bus.Client
}

func (s *ExternalSource) list() []bus.RemoteContainer {
	cs, ok := s.Client.Request(bus.ListContainersRequest)
	if !ok {
		return nil
	}
	return cs
}

func (s *ExternalSource) OwnsContainer(fid host.FormID) bool {
	for _, c := range s.list() {
		if c.FormID == fid {
			return true
		}
	}
	return false
}

func (s *ExternalSource) Resolve(fid host.FormID) DisplayInfo {
	for _, c := range s.list() {
		if c.FormID == fid {
			return DisplayInfo{
				Name:      c.DisplayName,
				Location:  c.Location,
				Color:     "blue",
				Available: true,
			}
		}
	}
	return DisplayInfo{Available: false}
}

func (s *ExternalSource) BuildPickerEntries(exclude host.FormID) []PickerEntry {
	cs := s.list()
	acc := make([]PickerEntry, 0, len(cs))
	for _, c := range cs {
		if c.FormID == exclude {
			continue
		}
		acc = append(acc, PickerEntry{FormID: c.FormID, Name: c.DisplayName, Location: c.Location})
	}
	return acc
}

// CellScanSource is the conservative fallback: containers in nearby
// cells the player has recently opened, as reported by the host.
type CellScanSource struct {
	Recent   func() []host.FormID
	Names    host.Inventories
	Resolver host.Resolver
}

func (s *CellScanSource) OwnsContainer(fid host.FormID) bool {
	for _, c := range s.Recent() {
		if c == fid {
			return true
		}
	}
	return false
}

func (s *CellScanSource) Resolve(fid host.FormID) DisplayInfo {
	if !s.OwnsContainer(fid) || !s.Resolver.ResolveForm(fid) {
		return DisplayInfo{Available: false}
	}
	return DisplayInfo{
		Name:      s.Names.ContainerName(fid),
		Color:     "grey",
		Available: true,
	}
}

func (s *CellScanSource) BuildPickerEntries(exclude host.FormID) []PickerEntry {
	recent := s.Recent()
	acc := make([]PickerEntry, 0, len(recent))
	for _, fid := range recent {
		if fid == exclude || !s.Resolver.ResolveForm(fid) {
			continue
		}
		acc = append(acc, PickerEntry{FormID: fid, Name: s.Names.ContainerName(fid)})
	}
	return acc
}
