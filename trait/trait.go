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

// Package trait derives categorical traits from item forms.
package trait

import (
	"fmt"
	"sort"
	"strings"

	"github.com/slid-mod/slid/host"
)

// Trait is a categorical label derivable from an item in O(1).
type Trait string

// Core traits.  Keyword and value-tier traits are constructed with
// Keyword and ValueAtLeast.
const (
	Weapon     Trait = "Weapon"
	Armor      Trait = "Armor"
	Book       Trait = "Book"
	Ingredient Trait = "Ingredient"
	Potion     Trait = "Potion"
	Food       Trait = "Food"
	Scroll     Trait = "Scroll"
	SoulGem    Trait = "SoulGem"
	Ammo       Trait = "Ammo"
	Key        Trait = "Key"
	Misc       Trait = "Misc"

	OneHanded Trait = "OneHanded"
	TwoHanded Trait = "TwoHanded"
	Ranged    Trait = "Ranged"
	Light     Trait = "Light"
	Heavy     Trait = "Heavy"
	Jewelry   Trait = "Jewelry"
	Clothing  Trait = "Clothing"

	Enchanted Trait = "Enchanted"
	Unique    Trait = "Unique"
)

// Keyword makes the trait for a host keyword.
func Keyword(kw string) Trait {
	return Trait("Keyword:" + kw)
}

// ValueAtLeast makes a value-tier trait.
func ValueAtLeast(n int) Trait {
	return Trait(fmt.Sprintf("Value>=%d", n))
}

var formTypeTraits = map[host.FormType]Trait{
	host.FormWeapon:     Weapon,
	host.FormArmor:      Armor,
	host.FormBook:       Book,
	host.FormIngredient: Ingredient,
	host.FormPotion:     Potion,
	host.FormFood:       Food,
	host.FormScroll:     Scroll,
	host.FormSoulGem:    SoulGem,
	host.FormAmmo:       Ammo,
	host.FormKey:        Key,
	host.FormMisc:       Misc,
}

var subtypeTraits = map[string]Trait{
	"onehanded": OneHanded,
	"twohanded": TwoHanded,
	"ranged":    Ranged,
	"light":     Light,
	"heavy":     Heavy,
	"jewelry":   Jewelry,
	"clothing":  Clothing,
}

// Set is the full trait set of one item plus its gold value, which
// matchers may gate on numerically.
type Set struct {
	GoldValue int

	traits map[Trait]bool
}

// Has reports trait membership.
func (s Set) Has(t Trait) bool {
	return s.traits[t]
}

// All returns the traits in sorted order.
func (s Set) All() []Trait {
	acc := make([]Trait, 0, len(s.traits))
	for t := range s.traits {
		acc = append(acc, t)
	}
	sort.Slice(acc, func(i, j int) bool { return acc[i] < acc[j] })
	return acc
}

// Evaluator derives trait sets.  Stateless after construction; safe for
// concurrent reads.
type Evaluator struct {
	tiers   []int
	uniques map[string]bool
}

// NewEvaluator builds an evaluator from a Config (see config.go).
func NewEvaluator(cfg Config) *Evaluator {
	tiers := append([]int(nil), cfg.ValueTiers...)
	sort.Ints(tiers)
	uniques := make(map[string]bool, len(cfg.Uniques))
	for _, name := range cfg.Uniques {
		uniques[strings.ToLower(name)] = true
	}
	return &Evaluator{tiers: tiers, uniques: uniques}
}

// TraitsOf returns the full trait set for an item.
func (e *Evaluator) TraitsOf(it host.Item) Set {
	ts := make(map[Trait]bool, 8)
	if t, have := formTypeTraits[it.Type()]; have {
		ts[t] = true
	}
	if t, have := subtypeTraits[strings.ToLower(it.Subtype())]; have {
		ts[t] = true
	}
	for _, kw := range it.Keywords() {
		ts[Keyword(kw)] = true
	}
	v := it.GoldValue()
	for _, tier := range e.tiers {
		if v >= tier {
			ts[ValueAtLeast(tier)] = true
		}
	}
	if it.Enchanted() {
		ts[Enchanted] = true
	}
	if e.uniques[strings.ToLower(it.Name())] {
		ts[Unique] = true
	}
	return Set{GoldValue: v, traits: ts}
}

// HasTrait is a direct query.
func (e *Evaluator) HasTrait(it host.Item, t Trait) bool {
	return e.TraitsOf(it).Has(t)
}

// Pass memoises trait sets per FormID for the duration of one pipeline
// pass.  Never reuse a Pass across frames: the host may mutate keyword
// membership via scripts.
type Pass struct {
	e    *Evaluator
	memo map[host.FormID]Set
}

// NewPass starts a pass-scoped view of the evaluator.
func (e *Evaluator) NewPass() *Pass {
	return &Pass{e: e, memo: make(map[host.FormID]Set, 32)}
}

// TraitsOf returns (and memoises) the item's trait set.
func (p *Pass) TraitsOf(it host.Item) Set {
	if s, have := p.memo[it.FormID()]; have {
		return s
	}
	s := p.e.TraitsOf(it)
	p.memo[it.FormID()] = s
	return s
}
