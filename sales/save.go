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

package sales

import (
	"github.com/slid-mod/slid/cosave"
)

// TagSales is the sell-state cosave record: the sell container plus the
// receipt ledger.
var TagSales = cosave.MakeTag("SELL")

const salesVersion = 1

// Component adapts the processor to the cosave stream.
func (p *Processor) Component() cosave.Component { return (*salesComponent)(p) }

type salesComponent Processor

func (c *salesComponent) Tag() cosave.Tag { return TagSales }
func (c *salesComponent) Version() uint32 { return salesVersion }

func (c *salesComponent) Save(e *cosave.Encoder) error {
	p := (*Processor)(c)
	e.FormID(p.net.SellContainer())
	e.U16(uint16(len(p.receipts)))
	for _, tx := range p.receipts {
		e.FormID(tx.Vendor)
		e.FormID(tx.Item)
		e.U32(tx.Quantity)
		e.U32(tx.UnitPrice)
		e.U32(tx.TotalGold)
		e.F32(tx.GameTime)
	}
	return e.Err()
}

func (c *salesComponent) Load(d *cosave.Decoder, version uint32) error {
	p := (*Processor)(c)
	p.receipts = nil
	p.lastSellTick = 0

	sell, ok := d.FormID()
	switch {
	case !ok:
		p.log.Warn("sell container lost to a missing plugin")
		p.net.NoteSellDropped()
		p.net.ClearSellContainer()
	default:
		p.net.RestoreSellContainer(sell)
	}

	count := int(d.U16())
	for i := 0; i < count; i++ {
		vendor, vok := d.FormID()
		item, iok := d.FormID()
		tx := Transaction{
			Vendor:    vendor,
			Item:      item,
			Quantity:  d.U32(),
			UnitPrice: d.U32(),
			TotalGold: d.U32(),
			GameTime:  d.F32(),
		}
		if err := d.Err(); err != nil {
			return err
		}
		if !vok || !iok {
			// Receipt references a gone plugin; the history entry is
			// meaningless without it.
			continue
		}
		p.receipts = append(p.receipts, tx)
	}
	return d.Err()
}

func (c *salesComponent) Revert() {
	p := (*Processor)(c)
	p.receipts = nil
	p.lastSellTick = 0
	p.net.ClearSellContainer()
}
