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

// Package host defines the seam between the distribution engine and the
// game that hosts it.
//
// Everything the engine knows about the world arrives through the small
// interfaces below.  The engine never holds pointers into host memory;
// cross-component references are FormIDs, which the host may remap
// between sessions.
package host

import (
	"errors"
	"fmt"
)

// FormID is an opaque 32-bit identifier assigned by the host.  The high
// byte encodes plugin load order and is remapped on save/load.
type FormID uint32

// PluginIndex returns the load-order byte of the FormID.
func (f FormID) PluginIndex() byte {
	return byte(f >> 24)
}

// Local returns the FormID with the load-order byte cleared.
func (f FormID) Local() uint32 {
	return uint32(f) & 0x00FFFFFF
}

func (f FormID) String() string {
	return fmt.Sprintf("0x%08X", uint32(f))
}

// FormType is the host's coarse classification of a form.
type FormType int

const (
	FormUnknown FormType = iota
	FormWeapon
	FormArmor
	FormBook
	FormIngredient
	FormPotion
	FormFood
	FormScroll
	FormSoulGem
	FormAmmo
	FormKey
	FormMisc
	FormLeveledItem
	FormContainer
	FormNPC
	FormFaction
)

var formTypeNames = map[FormType]string{
	FormUnknown:     "unknown",
	FormWeapon:      "weapon",
	FormArmor:       "armor",
	FormBook:        "book",
	FormIngredient:  "ingredient",
	FormPotion:      "potion",
	FormFood:        "food",
	FormScroll:      "scroll",
	FormSoulGem:     "soulgem",
	FormAmmo:        "ammo",
	FormKey:         "key",
	FormMisc:        "misc",
	FormLeveledItem: "leveleditem",
	FormContainer:   "container",
	FormNPC:         "npc",
	FormFaction:     "faction",
}

func (t FormType) String() string {
	if s, have := formTypeNames[t]; have {
		return s
	}
	return "unknown"
}

// Item is an immutable view of an item form.
//
// Implementations read straight from host memory; the engine treats the
// view as valid only within a single pass.
type Item interface {
	FormID() FormID
	Name() string
	Type() FormType

	// GoldValue is the base value before any price multipliers.
	GoldValue() int
	Weight() float64

	// Playable reports whether the host flags the form as playable.
	// Non-playable forms are phantoms; see Phantom.
	Playable() bool
	Enchanted() bool

	Keywords() []string
	HasKeyword(kw string) bool

	// Subtype refines Type: "onehanded", "twohanded", "light", "heavy",
	// "jewelry", "clothing", ...  Empty when the host has nothing finer.
	Subtype() string
}

// Stack is one inventory entry: an item form and how many of it.
type Stack struct {
	Item  Item
	Count int
}

// Phantom reports whether an item should be invisible to the engine:
// nameless forms, leveled-list placeholders, and non-playable flags.
// Every item enumeration filters with this predicate.
func Phantom(it Item) bool {
	if it == nil {
		return true
	}
	if it.Name() == "" {
		return true
	}
	if it.Type() == FormLeveledItem {
		return true
	}
	return !it.Playable()
}

// ErrUnavailable is returned when a form no longer resolves.  Callers
// log and continue; a mid-operation resolution failure never aborts a
// distribution pass.
var ErrUnavailable = errors.New("form unavailable")

// Resolver resolves FormIDs across the current plugin load order.
type Resolver interface {
	// ResolveForm reports whether the FormID refers to a live form in
	// this session.
	ResolveForm(fid FormID) bool

	// LookupForm maps a (plugin file, local id) pair to a runtime
	// FormID, or false if the plugin is not loaded.
	LookupForm(plugin string, local uint32) (FormID, bool)
}

// Forms exposes form views by FormID, for forms that are not sitting in
// any inventory (merchant factions, mainly).
type Forms interface {
	Form(fid FormID) (Item, bool)
}

// PluginNames maps load-order indexes back to plugin file names, the
// inverse of Resolver.LookupForm.  Preset export needs it to write
// portable plugin-relative references.
type PluginNames interface {
	PluginName(index byte) (string, bool)
}

// Inventories enumerates container contents.
type Inventories interface {
	// Inventory returns the stacks held by the container, phantoms
	// included; callers filter with Phantom.  ErrUnavailable if the
	// container does not resolve.
	Inventory(container FormID) ([]Stack, error)

	// ContainerName returns the host's display name for a container,
	// or "" if unresolvable.
	ContainerName(container FormID) string
}

// Mover mutates inventories.  Only the host's main thread may call it.
type Mover interface {
	// MoveStack moves count of item from one container to another.
	MoveStack(item FormID, count int, from, to FormID) error

	// RemoveItem removes count of item from a container without a
	// destination (sold goods).
	RemoveItem(item FormID, count int, from FormID) error
}

// Ledger credits the player.
type Ledger interface {
	CreditGold(amount int)
}

// Clock is the host's game calendar in floating-point game hours.  It
// advances with game time and stops in menus.
type Clock interface {
	GameHours() float64
}

// Tasks schedules fire-and-forget work onto the host's main thread on a
// later frame.  Submission order is preserved per submitter.
type Tasks interface {
	Defer(task func())
}
