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

// Package filter owns the forest of item filters.
//
// Filters are records with a declarative matcher, not a class
// hierarchy; adding a family is a data addition to the taxonomy file.
package filter

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/trait"

	"gopkg.in/yaml.v2"
)

// ID names a filter: a short lowercase string like "weapons" or
// "weapons.onehanded".  Comparison is case-insensitive; Normalize
// canonicalises.
type ID string

// Normalize lowercases an ID.
func Normalize(id ID) ID {
	return ID(strings.ToLower(string(id)))
}

// Filter is one node in the forest.
type Filter struct {
	ID          ID      `yaml:"id"`
	DisplayName string  `yaml:"name"`
	Description string  `yaml:"desc,omitempty"`
	Parent      ID      `yaml:"parent,omitempty"`
	Matcher     Matcher `yaml:"match"`

	// Whoosh marks a family root as a default whoosh target.
	Whoosh bool `yaml:"whoosh,omitempty"`
}

// Registry is the fixed forest of filters.  Immutable after Init; Match
// is deterministic, side-effect-free, and safe from any goroutine as
// long as the evaluator's inputs are stable.
type Registry struct {
	eval *trait.Evaluator

	filters  map[ID]*Filter
	order    []ID
	children map[ID][]ID
	roots    []ID
}

//go:embed taxonomy.yaml
var taxonomyYAML []byte

// Init constructs the built-in hierarchy.
func Init(eval *trait.Evaluator) (*Registry, error) {
	return Load(taxonomyYAML, eval)
}

// Load builds a registry from a YAML taxonomy.  Exposed for tests; the
// process uses Init.
func Load(data []byte, eval *trait.Evaluator) (*Registry, error) {
	var decl struct {
		Filters []*Filter `yaml:"filters"`
	}
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("filter taxonomy: %w", err)
	}

	r := &Registry{
		eval:     eval,
		filters:  make(map[ID]*Filter, len(decl.Filters)),
		children: make(map[ID][]ID, 16),
	}

	for _, f := range decl.Filters {
		f.ID = Normalize(f.ID)
		f.Parent = Normalize(f.Parent)
		if f.ID == "" {
			return nil, fmt.Errorf("filter taxonomy: filter with empty id")
		}
		if _, have := r.filters[f.ID]; have {
			return nil, fmt.Errorf("filter taxonomy: duplicate id %q", f.ID)
		}
		r.filters[f.ID] = f
		r.order = append(r.order, f.ID)
	}

	for _, id := range r.order {
		f := r.filters[id]
		if f.Parent == "" {
			r.roots = append(r.roots, id)
			continue
		}
		p, have := r.filters[f.Parent]
		if !have {
			return nil, fmt.Errorf("filter taxonomy: %q has unknown parent %q", id, f.Parent)
		}
		if p.Parent != "" {
			// Keep families one level deep: a child's parent is its
			// family root.
			return nil, fmt.Errorf("filter taxonomy: %q nests under non-root %q", id, f.Parent)
		}
		r.children[f.Parent] = append(r.children[f.Parent], id)
		// match(item) implies parent.match(item), by construction.
		f.Matcher = f.Matcher.conjoin(p.Matcher)
	}

	return r, nil
}

// Get returns the filter for an ID.
func (r *Registry) Get(id ID) (*Filter, bool) {
	f, have := r.filters[Normalize(id)]
	return f, have
}

// Children returns the child IDs of a family root, in taxonomy order.
func (r *Registry) Children(root ID) []ID {
	return append([]ID(nil), r.children[Normalize(root)]...)
}

// FamilyRoots returns the root IDs in taxonomy order.
func (r *Registry) FamilyRoots() []ID {
	return append([]ID(nil), r.roots...)
}

// Root returns the family root of a filter (itself if it is a root).
func (r *Registry) Root(id ID) (ID, bool) {
	f, have := r.filters[Normalize(id)]
	if !have {
		return "", false
	}
	if f.Parent == "" {
		return f.ID, true
	}
	return f.Parent, true
}

// All returns every filter ID in taxonomy order.
func (r *Registry) All() []ID {
	return append([]ID(nil), r.order...)
}

// MatchSet tests a filter against a precomputed trait set.  Unknown
// filters match nothing.
func (r *Registry) MatchSet(id ID, s trait.Set) bool {
	f, have := r.filters[Normalize(id)]
	if !have {
		return false
	}
	return f.Matcher.Test(s)
}

// Match tests a filter against an item.
func (r *Registry) Match(id ID, it host.Item) bool {
	return r.MatchSet(id, r.eval.TraitsOf(it))
}

// Evaluator returns the trait evaluator the registry matches with.
func (r *Registry) Evaluator() *trait.Evaluator {
	return r.eval
}

// DefaultWhooshFilters returns the roots that drain back to master when
// the user invokes Whoosh without prior configuration.
func (r *Registry) DefaultWhooshFilters() []ID {
	acc := make([]ID, 0, 8)
	for _, id := range r.roots {
		if r.filters[id].Whoosh {
			acc = append(acc, id)
		}
	}
	return acc
}
