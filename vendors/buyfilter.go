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
	"strings"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
)

// keywordRoots is the single table mapping merchant-faction keywords
// to filter family roots.  The UI categories string and the sales tick
// both read it, so the two can never drift.
var keywordRoots = []struct {
	keyword string
	root    filter.ID
}{
	{"VendorItemWeapon", "weapons"},
	{"VendorItemStaff", "weapons"},
	{"VendorItemArmor", "armor"},
	{"VendorItemClothing", "clothing"},
	{"VendorItemJewelry", "jewelry"},
	{"VendorItemArrow", "ammo"},
	{"VendorItemBook", "books"},
	{"VendorItemSpellTome", "books"},
	{"VendorItemRecipe", "books"},
	{"VendorItemPotion", "potions"},
	{"VendorItemPoison", "potions"},
	{"VendorItemFood", "food"},
	{"VendorItemFoodRaw", "food"},
	{"VendorItemIngredient", "ingredients"},
	{"VendorItemScroll", "scrolls"},
	{"VendorItemSoulGem", "soulgems"},
	{"VendorItemGem", "gems"},
	{"VendorItemOreIngot", "materials"},
	{"VendorItemAnimalHide", "materials"},
	{"VendorItemKey", "keys"},
	{"VendorItemClutter", "misc"},
	{"VendorItemTool", "misc"},
}

// BuyFilters derives a vendor's buy filter from the keywords on its
// merchant faction.  Unknown keywords are ignored; a dead faction
// yields an empty filter (the vendor buys nothing).
func BuyFilters(forms host.Forms, faction host.FormID) []filter.ID {
	fac, have := forms.Form(faction)
	if !have {
		return nil
	}
	var roots []filter.ID
	seen := map[filter.ID]bool{}
	for _, kr := range keywordRoots {
		if seen[kr.root] || !fac.HasKeyword(kr.keyword) {
			continue
		}
		seen[kr.root] = true
		roots = append(roots, kr.root)
	}
	return roots
}

// Accepts reports whether an item falls under any of the given family
// roots.
func Accepts(reg *filter.Registry, roots []filter.ID, it host.Item) bool {
	for _, root := range roots {
		if reg.Match(root, it) {
			return true
		}
	}
	return false
}

// Categories renders the buy filter for display, e.g. in the vendor
// picker.
func Categories(reg *filter.Registry, roots []filter.ID) string {
	if len(roots) == 0 {
		return "Nothing"
	}
	names := make([]string, 0, len(roots))
	for _, root := range roots {
		if f, have := reg.Get(root); have {
			names = append(names, f.DisplayName)
		}
	}
	return strings.Join(names, ", ")
}
