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

package vendors

import (
	"github.com/slid-mod/slid/cosave"
)

// TagVendors is the vendor registry's cosave record.  Version 2 added
// the invested flag.
var TagVendors = cosave.MakeTag("VEND")

const vendorsVersion = 2

// Component adapts the registry to the cosave stream.
func (r *Registry) Component() cosave.Component { return (*vendorsComponent)(r) }

type vendorsComponent Registry

func (c *vendorsComponent) Tag() cosave.Tag { return TagVendors }
func (c *vendorsComponent) Version() uint32 { return vendorsVersion }
func (c *vendorsComponent) Revert()         { (*Registry)(c).Clear() }

func (c *vendorsComponent) Save(e *cosave.Encoder) error {
	r := (*Registry)(c)
	r.Lock()
	defer r.Unlock()
	e.U16(uint16(len(r.vendors)))
	for _, v := range r.vendors {
		e.FormID(v.NPC)
		e.FormID(v.Faction)
		e.String(v.Name)
		e.String(v.Store)
		e.F32(v.Registered)
		e.F32(v.LastVisit)
		e.U32(v.ItemsSold)
		e.U32(v.GoldEarned)
		e.Bool(v.Active)
		e.Bool(v.Invested)
	}
	return e.Err()
}

func (c *vendorsComponent) Load(d *cosave.Decoder, version uint32) error {
	r := (*Registry)(c)
	r.Lock()
	defer r.Unlock()
	r.vendors = nil
	count := int(d.U16())
	for i := 0; i < count; i++ {
		npc, npcOK := d.FormID()
		faction, facOK := d.FormID()
		v := &Vendor{
			NPC:        npc,
			Faction:    faction,
			Name:       d.String(),
			Store:      d.String(),
			Registered: d.F32(),
			LastVisit:  d.F32(),
			ItemsSold:  d.U32(),
			GoldEarned: d.U32(),
			Active:     d.Bool(),
		}
		if version >= 2 {
			v.Invested = d.Bool()
		}
		if err := d.Err(); err != nil {
			return err
		}
		if !npcOK || !facOK {
			r.log.Warn("dropping vendor from a missing plugin",
				"vendor", v.Name, "npc", npc.String())
			r.loadDrops++
			continue
		}
		r.vendors = append(r.vendors, v)
	}
	return d.Err()
}
