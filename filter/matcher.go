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

package filter

import "github.com/slid-mod/slid/trait"

// Matcher is a declarative set-of-traits predicate: required traits,
// alternatives, disallowed traits, and an optional value gate.  There
// are no ad-hoc code paths; every filter is one of these.
type Matcher struct {
	// All must every one be present.
	All []trait.Trait `yaml:"all,omitempty"`

	// Any requires at least one to be present (ignored when empty).
	Any []trait.Trait `yaml:"any,omitempty"`

	// None must all be absent.
	None []trait.Trait `yaml:"none,omitempty"`

	// MinValue gates on the item's base gold value (0 = no gate).
	MinValue int `yaml:"minValue,omitempty"`

	// anyGroups holds extra disjunction groups produced by conjoin.
	// Not expressible in the taxonomy file.
	anyGroups [][]trait.Trait
}

// Test applies the predicate to a trait set.
func (m Matcher) Test(s trait.Set) bool {
	for _, t := range m.All {
		if !s.Has(t) {
			return false
		}
	}
	if len(m.Any) > 0 && !anyOf(s, m.Any) {
		return false
	}
	for _, group := range m.anyGroups {
		if !anyOf(s, group) {
			return false
		}
	}
	for _, t := range m.None {
		if s.Has(t) {
			return false
		}
	}
	if m.MinValue > 0 && s.GoldValue < m.MinValue {
		return false
	}
	return true
}

func anyOf(s trait.Set, ts []trait.Trait) bool {
	for _, t := range ts {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// conjoin returns a matcher equivalent to (m AND parent).  The registry
// folds every ancestor's predicate into its children at load, so a
// child can never match outside its family.
func (m Matcher) conjoin(parent Matcher) Matcher {
	out := Matcher{
		All:      append(append([]trait.Trait(nil), parent.All...), m.All...),
		None:     append(append([]trait.Trait(nil), parent.None...), m.None...),
		Any:      append([]trait.Trait(nil), m.Any...),
		MinValue: m.MinValue,
	}
	if parent.MinValue > out.MinValue {
		out.MinValue = parent.MinValue
	}
	out.anyGroups = append(out.anyGroups, m.anyGroups...)
	if len(parent.Any) > 0 {
		out.anyGroups = append(out.anyGroups, parent.Any)
	}
	out.anyGroups = append(out.anyGroups, parent.anyGroups...)
	return out
}
