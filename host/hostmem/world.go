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

// Package hostmem is an in-memory host.
//
// It backs the test suites and 'slid sim'.  It is not glamorous or
// efficient.
package hostmem

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/slid-mod/slid/host"
)

// Item is a concrete item form.
type Item struct {
	ID          host.FormID
	ItemName    string
	FormType    host.FormType
	Value       int
	ItemWeight  float64
	NonPlayable bool
	HasEnchant  bool
	KeywordList []string
	Sub         string
}

func (it *Item) FormID() host.FormID { return it.ID }
func (it *Item) Name() string        { return it.ItemName }
func (it *Item) Type() host.FormType { return it.FormType }
func (it *Item) GoldValue() int      { return it.Value }
func (it *Item) Weight() float64     { return it.ItemWeight }
func (it *Item) Playable() bool      { return !it.NonPlayable }
func (it *Item) Enchanted() bool     { return it.HasEnchant }
func (it *Item) Keywords() []string  { return it.KeywordList }
func (it *Item) Subtype() string     { return it.Sub }

func (it *Item) HasKeyword(kw string) bool {
	for _, have := range it.KeywordList {
		if strings.EqualFold(have, kw) {
			return true
		}
	}
	return false
}

type entry struct {
	item  host.FormID
	count int
}

// Container is a mutable container form.
type Container struct {
	ID            host.FormID
	ContainerName string

	entries []entry
}

// World implements every host interface over plain maps.
type World struct {
	mu sync.Mutex

	items      map[host.FormID]*Item
	containers map[host.FormID]*Container
	plugins    map[string]byte
	pluginName map[byte]string

	gold     int
	hours    float64
	menuOpen bool

	deferred []func()
}

// NewWorld creates an empty world with the game clock at zero.
func NewWorld() *World {
	return &World{
		items:      make(map[host.FormID]*Item, 64),
		containers: make(map[host.FormID]*Container, 16),
		plugins:    make(map[string]byte, 8),
		pluginName: make(map[byte]string, 8),
	}
}

// AddPlugin registers a plugin file at a load-order index.
func (w *World) AddPlugin(name string, index byte) {
	w.mu.Lock()
	w.plugins[strings.ToLower(name)] = index
	w.pluginName[index] = name
	w.mu.Unlock()
}

// DefineItem adds an item form and returns it for further tweaking.
func (w *World) DefineItem(fid host.FormID, name string, typ host.FormType, value int, keywords ...string) *Item {
	it := &Item{
		ID:          fid,
		ItemName:    name,
		FormType:    typ,
		Value:       value,
		KeywordList: keywords,
	}
	w.mu.Lock()
	w.items[fid] = it
	w.mu.Unlock()
	return it
}

// AddContainer adds an empty container form.
func (w *World) AddContainer(fid host.FormID, name string) *Container {
	c := &Container{ID: fid, ContainerName: name}
	w.mu.Lock()
	w.containers[fid] = c
	w.mu.Unlock()
	return c
}

// Containers lists every container form, FormID ascending.
func (w *World) Containers() []host.FormID {
	w.mu.Lock()
	acc := make([]host.FormID, 0, len(w.containers))
	for fid := range w.containers {
		acc = append(acc, fid)
	}
	w.mu.Unlock()
	sort.Slice(acc, func(i, j int) bool { return acc[i] < acc[j] })
	return acc
}

// Give puts count of an item into a container.
func (w *World) Give(container, item host.FormID, count int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, have := w.containers[container]
	if !have {
		return host.ErrUnavailable
	}
	if _, have := w.items[item]; !have {
		return fmt.Errorf("no such item %v", item)
	}
	c.add(item, count)
	return nil
}

func (c *Container) add(item host.FormID, count int) {
	for i := range c.entries {
		if c.entries[i].item == item {
			c.entries[i].count += count
			return
		}
	}
	c.entries = append(c.entries, entry{item: item, count: count})
}

func (c *Container) remove(item host.FormID, count int) bool {
	for i := range c.entries {
		if c.entries[i].item != item {
			continue
		}
		if c.entries[i].count < count {
			return false
		}
		c.entries[i].count -= count
		if c.entries[i].count == 0 {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
		}
		return true
	}
	return false
}

// DestroyForm removes a form so that it no longer resolves.  Used to
// simulate a plugin disappearing between sessions.
func (w *World) DestroyForm(fid host.FormID) {
	w.mu.Lock()
	delete(w.items, fid)
	delete(w.containers, fid)
	w.mu.Unlock()
}

// Count returns how many of an item a container holds (0 if either is
// unresolvable).
func (w *World) Count(container, item host.FormID) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, have := w.containers[container]
	if !have {
		return 0
	}
	for _, e := range c.entries {
		if e.item == item {
			return e.count
		}
	}
	return 0
}

// TotalCount sums all stack counts in a container, phantoms excluded.
func (w *World) TotalCount(container host.FormID) int {
	stacks, err := w.Inventory(container)
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

// host.Resolver

func (w *World) ResolveForm(fid host.FormID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, have := w.items[fid]; have {
		return true
	}
	_, have := w.containers[fid]
	return have
}

func (w *World) LookupForm(plugin string, local uint32) (host.FormID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, have := w.plugins[strings.ToLower(plugin)]
	if !have {
		return 0, false
	}
	return host.FormID(uint32(idx)<<24 | local&0x00FFFFFF), true
}

// host.PluginNames

func (w *World) PluginName(index byte) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	name, have := w.pluginName[index]
	return name, have
}

// host.Forms

func (w *World) Form(fid host.FormID) (host.Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	it, have := w.items[fid]
	if !have {
		return nil, false
	}
	return it, true
}

// host.Inventories

func (w *World) Inventory(container host.FormID) ([]host.Stack, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, have := w.containers[container]
	if !have {
		return nil, host.ErrUnavailable
	}
	acc := make([]host.Stack, 0, len(c.entries))
	for _, e := range c.entries {
		it, have := w.items[e.item]
		if !have {
			continue
		}
		acc = append(acc, host.Stack{Item: it, Count: e.count})
	}
	// Stable enumeration keeps predictions deterministic.
	sort.Slice(acc, func(i, j int) bool {
		return acc[i].Item.FormID() < acc[j].Item.FormID()
	})
	return acc, nil
}

func (w *World) ContainerName(container host.FormID) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, have := w.containers[container]; have {
		return c.ContainerName
	}
	return ""
}

// host.Mover

func (w *World) MoveStack(item host.FormID, count int, from, to host.FormID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	src, have := w.containers[from]
	if !have {
		return host.ErrUnavailable
	}
	dst, have := w.containers[to]
	if !have {
		return host.ErrUnavailable
	}
	if !src.remove(item, count) {
		return fmt.Errorf("container %v lacks %d of %v", from, count, item)
	}
	dst.add(item, count)
	return nil
}

func (w *World) RemoveItem(item host.FormID, count int, from host.FormID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	src, have := w.containers[from]
	if !have {
		return host.ErrUnavailable
	}
	if !src.remove(item, count) {
		return fmt.Errorf("container %v lacks %d of %v", from, count, item)
	}
	return nil
}

// host.Ledger

func (w *World) CreditGold(amount int) {
	w.mu.Lock()
	w.gold += amount
	w.mu.Unlock()
}

// Gold returns the player's credited gold.
func (w *World) Gold() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gold
}

// host.Clock

func (w *World) GameHours() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hours
}

// AdvanceHours moves the game clock forward.
func (w *World) AdvanceHours(h float64) {
	w.mu.Lock()
	w.hours += h
	w.mu.Unlock()
}

// SetHours sets the game clock.
func (w *World) SetHours(h float64) {
	w.mu.Lock()
	w.hours = h
	w.mu.Unlock()
}

// MenuOpen and MenuClose toggle the host's menu flag.
func (w *World) MenuOpen()  { w.mu.Lock(); w.menuOpen = true; w.mu.Unlock() }
func (w *World) MenuClose() { w.mu.Lock(); w.menuOpen = false; w.mu.Unlock() }

// InMenu reports whether a menu is open.
func (w *World) InMenu() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.menuOpen
}

// host.Tasks

func (w *World) Defer(task func()) {
	w.mu.Lock()
	w.deferred = append(w.deferred, task)
	w.mu.Unlock()
}

// RunDeferred drains the deferred-task queue in FIFO order, as the host
// would on a later frame.
func (w *World) RunDeferred() {
	w.mu.Lock()
	tasks := w.deferred
	w.deferred = nil
	w.mu.Unlock()
	for _, t := range tasks {
		t()
	}
}

// Remap rewrites the load-order byte of every form according to the
// given table, simulating a changed plugin load order on save/load.
// Returns the remapping function for use as a cosave resolver.
func (w *World) Remap(oldToNew map[byte]byte) func(host.FormID) (host.FormID, bool) {
	w.mu.Lock()
	remap := func(fid host.FormID) (host.FormID, bool) {
		idx, have := oldToNew[fid.PluginIndex()]
		if !have {
			return 0, false
		}
		return host.FormID(uint32(idx)<<24 | fid.Local()), true
	}
	items := make(map[host.FormID]*Item, len(w.items))
	for fid, it := range w.items {
		if nfid, ok := remap(fid); ok {
			it.ID = nfid
			items[nfid] = it
		}
	}
	w.items = items
	containers := make(map[host.FormID]*Container, len(w.containers))
	for fid, c := range w.containers {
		if nfid, ok := remap(fid); ok {
			c.ID = nfid
			for i := range c.entries {
				if nid, ok := remap(c.entries[i].item); ok {
					c.entries[i].item = nid
				}
			}
			containers[nfid] = c
		}
	}
	w.containers = containers
	for name, idx := range w.plugins {
		if nidx, have := oldToNew[idx]; have {
			w.plugins[name] = nidx
		} else {
			delete(w.plugins, name)
		}
	}
	names := make(map[byte]string, len(w.pluginName))
	for idx, name := range w.pluginName {
		if nidx, have := oldToNew[idx]; have {
			names[nidx] = name
		}
	}
	w.pluginName = names
	w.mu.Unlock()
	return remap
}
