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
	"sort"

	"github.com/slid-mod/slid/cosave"
	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

// Cosave record tags owned by this package.
var (
	TagNetworks = cosave.MakeTag("NETW")
	TagTags     = cosave.MakeTag("TAGS")
)

// NetworksComponent adapts the manager's networks to the cosave stream.
func (m *Manager) NetworksComponent() cosave.Component {
	return netwComponent{m}
}

// TagsComponent adapts the manager's tags to the cosave stream.
func (m *Manager) TagsComponent() cosave.Component {
	return tagsComponent{m}
}

type netwComponent struct {
	m *Manager
}

func (netwComponent) Tag() cosave.Tag { return TagNetworks }
func (netwComponent) Version() uint32 { return 1 }

func (c netwComponent) Save(e *cosave.Encoder) error {
	m := c.m
	e.U16(uint16(len(m.networks)))
	for _, n := range m.networks {
		e.String(n.Name)
		e.FormID(n.Master)
		e.U16(uint16(len(n.Stages)))
		for _, s := range n.Stages {
			e.String(string(s.Filter))
			e.FormID(s.Container)
		}
		e.FormID(n.CatchAll)
		e.Bool(n.WhooshConfigured)
		e.U16(uint16(len(n.WhooshFilters)))
		for _, id := range n.WhooshFilters {
			e.String(string(id))
		}
	}
	return e.Err()
}

func (c netwComponent) Load(d *cosave.Decoder, version uint32) error {
	m := c.m
	m.networks = nil

	count := int(d.U16())
	for i := 0; i < count; i++ {
		name := d.String()
		master, masterOK := d.FormID()

		stageCount := int(d.U16())
		stages := make([]Stage, 0, stageCount)
		for j := 0; j < stageCount; j++ {
			id := filter.Normalize(filter.ID(d.String()))
			dest, destOK := d.FormID()
			if !destOK {
				// Source plugin gone: the stage is dropped.
				m.loadDrops.PrunedFilters++
				continue
			}
			stages = append(stages, Stage{Filter: id, Container: dest})
		}

		catchAll, catchOK := d.FormID()
		configured := d.Bool()
		whooshCount := int(d.U16())
		whoosh := make([]filter.ID, 0, whooshCount)
		for j := 0; j < whooshCount; j++ {
			whoosh = append(whoosh, filter.Normalize(filter.ID(d.String())))
		}

		if d.Err() != nil {
			return d.Err()
		}
		if !masterOK {
			// Whole network dropped; the record was still consumed.
			m.loadDrops.PrunedNetworks++
			m.log.Warn("network skipped on load: master plugin absent", "name", name)
			continue
		}
		if !catchOK {
			m.loadDrops.PrunedFilters++
			catchAll = 0
		}
		n := &Network{
			Name:             name,
			Master:           master,
			Stages:           stages,
			CatchAll:         catchAll,
			WhooshFilters:    whoosh,
			WhooshConfigured: configured,
		}
		n.repairFamilyRoots(m.reg)
		m.networks = append(m.networks, n)
	}
	return d.Err()
}

func (c netwComponent) Revert() {
	c.m.networks = nil
	c.m.loadDrops = Counts{}
}

type tagsComponent struct {
	m *Manager
}

func (tagsComponent) Tag() cosave.Tag { return TagTags }
func (tagsComponent) Version() uint32 { return 1 }

func (c tagsComponent) Save(e *cosave.Encoder) error {
	m := c.m
	// Sorted for a stable stream.
	fids := make([]host.FormID, 0, len(m.tags))
	for fid := range m.tags {
		fids = append(fids, fid)
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })

	e.U16(uint16(len(fids)))
	for _, fid := range fids {
		e.FormID(fid)
		e.String(m.tags[fid])
	}
	return e.Err()
}

func (c tagsComponent) Load(d *cosave.Decoder, version uint32) error {
	m := c.m
	m.tags = make(map[host.FormID]string, 16)
	count := int(d.U16())
	for i := 0; i < count; i++ {
		fid, ok := d.FormID()
		name := d.String()
		if !ok || fid == 0 {
			m.loadDrops.PrunedTags++
			continue
		}
		m.tags[fid] = name
	}
	return d.Err()
}

func (c tagsComponent) Revert() {
	c.m.tags = make(map[host.FormID]string, 16)
}
