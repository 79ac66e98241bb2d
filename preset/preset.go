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

// Package preset loads the declarative configuration files other mods
// and users drop next to ours: network presets, the allowed-vendor
// list, and named container lists.
package preset

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/slid-mod/slid/filter"
	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/network"
)

// Pattern matches the config files we scan for; ExportName is our own
// export target and is skipped.
const (
	Pattern    = "*SLID_*.ini"
	ExportName = "SLID_Export.ini"
)

// ListedContainer is one entry of a [ContainerList:X] section.
type ListedContainer struct {
	Plugin   string
	Local    uint32
	Name     string
	Resolved host.FormID // 0 when the plugin is absent
}

// Result is everything the config directory contributed.
type Result struct {
	Presets        []*network.Preset
	AllowedVendors []host.FormID
	Lists          map[string][]ListedContainer
}

// Loader parses preset files against a live load order.
type Loader struct {
	res  host.Resolver
	freg *filter.Registry
	log  *slog.Logger
}

func NewLoader(res host.Resolver, freg *filter.Registry, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{res: res, freg: freg, log: log.With("component", "preset")}
}

// LoadDir scans dir for preset files, skipping our export, and parses
// them in lexical order so later files cannot shadow earlier presets
// nondeterministically.
func (l *Loader) LoadDir(dir string) (*Result, error) {
	paths, err := filepath.Glob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, fmt.Errorf("preset: scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	res := &Result{Lists: map[string][]ListedContainer{}}
	for _, path := range paths {
		if filepath.Base(path) == ExportName {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			l.log.Warn("preset file unreadable", "file", path, "error", err)
			continue
		}
		l.parseFile(filepath.Base(path), data, res)
	}
	return res, nil
}

// parseFile folds one file into res.  Malformed lines are skipped; the
// first one per file gets a warning, the rest stay quiet.
func (l *Loader) parseFile(name string, data []byte, res *Result) {
	f, err := ini.LoadSources(ini.LoadOptions{
		KeyValueDelimiters:       "=",
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		l.log.Warn("preset file rejected", "file", name, "error", err)
		return
	}

	warned := false
	malformed := func(detail string) {
		if !warned {
			l.log.Warn("malformed preset line, skipping", "file", name, "detail", detail)
			warned = true
		}
	}

	presets := map[string]*network.Preset{}
	preset := func(pname string) *network.Preset {
		p, have := presets[pname]
		if !have {
			p = &network.Preset{Name: pname}
			presets[pname] = p
			res.Presets = append(res.Presets, p)
		}
		return p
	}

	for _, sec := range f.Sections() {
		switch {
		case sec.Name() == "Vendors":
			l.parseVendors(sec, res, malformed)
		case strings.HasPrefix(sec.Name(), "ContainerList:"):
			lname := strings.TrimPrefix(sec.Name(), "ContainerList:")
			res.Lists[lname] = append(res.Lists[lname], l.parseList(sec, malformed)...)
		case strings.HasPrefix(sec.Name(), "Preset:"):
			rest := strings.TrimPrefix(sec.Name(), "Preset:")
			pname, sub, _ := strings.Cut(rest, ":")
			if pname == "" {
				malformed("empty preset name in " + sec.Name())
				continue
			}
			switch sub {
			case "":
				l.parseHeader(sec, preset(pname), malformed)
			case "Filters":
				l.parseFilters(sec, preset(pname), malformed)
			case "Tags":
				l.parseTags(sec, preset(pname), malformed)
			case "Whoosh":
				l.parseWhoosh(sec, preset(pname), malformed)
			default:
				// Unknown subsection: forward-compatible, ignore.
			}
		}
	}
}

func (l *Loader) parseHeader(sec *ini.Section, p *network.Preset, malformed func(string)) {
	for _, key := range sec.Keys() {
		switch key.Name() {
		case "Master":
			plugin, local, err := ParseFormRef(key.Value())
			if err != nil {
				malformed("Master = " + key.Value())
				continue
			}
			p.MasterPlugin, p.MasterLocal = plugin, local
			p.ResolvedMaster, _ = l.res.LookupForm(plugin, local)
		case "Sell":
			plugin, local, err := ParseFormRef(key.Value())
			if err != nil {
				malformed("Sell = " + key.Value())
				continue
			}
			p.SellPlugin, p.SellLocal = plugin, local
			p.ResolvedSell, _ = l.res.LookupForm(plugin, local)
		case "RequirePlugin":
			p.RequirePlugin = key.Value()
		case "Description":
			p.Description = key.Value()
		case "UserGenerated":
			p.UserGenerated, _ = key.Bool()
		}
	}
	if p.RequirePlugin != "" {
		if _, have := l.res.LookupForm(p.RequirePlugin, 0); !have {
			p.ResolvedMaster = 0
		}
	}
}

func (l *Loader) parseFilters(sec *ini.Section, p *network.Preset, malformed func(string)) {
	for _, key := range sec.Keys() {
		id := filter.Normalize(filter.ID(key.Name()))
		if _, have := l.freg.Get(id); !have {
			malformed("unknown filter " + key.Name())
			continue
		}
		pf := network.PresetFilter{Filter: id}
		switch strings.ToLower(key.Value()) {
		case "keep":
			pf.Dest = network.PresetKeep
		case "pass":
			pf.Dest = network.PresetPass
		default:
			plugin, local, err := ParseFormRef(key.Value())
			if err != nil {
				malformed(key.Name() + " = " + key.Value())
				continue
			}
			pf.Dest = network.PresetContainer
			pf.Plugin, pf.Local = plugin, local
			pf.Resolved, _ = l.res.LookupForm(plugin, local)
		}
		p.Filters = append(p.Filters, pf)
	}
}

func (l *Loader) parseTags(sec *ini.Section, p *network.Preset, malformed func(string)) {
	for _, key := range sec.Keys() {
		plugin, local, err := ParseFormRef(key.Name())
		if err != nil || key.Value() == "" {
			malformed(key.Name() + " = " + key.Value())
			continue
		}
		tag := network.PresetTag{Plugin: plugin, Local: local, Name: key.Value()}
		tag.Resolved, _ = l.res.LookupForm(plugin, local)
		p.Tags = append(p.Tags, tag)
	}
}

func (l *Loader) parseWhoosh(sec *ini.Section, p *network.Preset, malformed func(string)) {
	for _, key := range sec.Keys() {
		on, err := key.Bool()
		if err != nil {
			malformed(key.Name() + " = " + key.Value())
			continue
		}
		if on {
			p.Whoosh = append(p.Whoosh, filter.Normalize(filter.ID(key.Name())))
		}
	}
}

func (l *Loader) parseVendors(sec *ini.Section, res *Result, malformed func(string)) {
	for _, key := range sec.Keys() {
		on, berr := key.Bool()
		plugin, local, err := ParseFormRef(key.Name())
		if err != nil || berr != nil {
			malformed(key.Name() + " = " + key.Value())
			continue
		}
		if !on {
			continue
		}
		if fid, have := l.res.LookupForm(plugin, local); have {
			res.AllowedVendors = append(res.AllowedVendors, fid)
		}
	}
}

func (l *Loader) parseList(sec *ini.Section, malformed func(string)) []ListedContainer {
	var acc []ListedContainer
	for _, key := range sec.Keys() {
		plugin, local, err := ParseFormRef(key.Name())
		if err != nil {
			malformed(key.Name() + " = " + key.Value())
			continue
		}
		lc := ListedContainer{Plugin: plugin, Local: local, Name: key.Value()}
		lc.Resolved, _ = l.res.LookupForm(plugin, local)
		acc = append(acc, lc)
	}
	return acc
}

// ParseFormRef splits a portable "Plugin.esp|0xID" reference.
func ParseFormRef(s string) (plugin string, local uint32, err error) {
	plugin, id, found := strings.Cut(strings.TrimSpace(s), "|")
	plugin = strings.TrimSpace(plugin)
	id = strings.TrimSpace(id)
	if !found || plugin == "" || id == "" {
		return "", 0, fmt.Errorf("bad form reference %q", s)
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(id, "0x"), "0X")
	v, perr := strconv.ParseUint(hex, 16, 32)
	if perr != nil || v > 0x00FFFFFF {
		return "", 0, fmt.Errorf("bad form reference %q", s)
	}
	return plugin, uint32(v), nil
}

// FormatFormRef is the inverse of ParseFormRef.
func FormatFormRef(plugin string, local uint32) string {
	return fmt.Sprintf("%s|0x%06X", plugin, local)
}

// Merge applies a load result to the live state with at-most-once
// semantics: presets replace the library wholesale, while tags and the
// sell container are added only where saved state has none.  Existing
// state always wins.
func Merge(m *network.Manager, res *Result) {
	m.SetPresets(res.Presets)
	for _, p := range res.Presets {
		for _, tag := range p.Tags {
			if tag.Resolved == 0 {
				continue
			}
			if _, tagged := m.Tag(tag.Resolved); tagged {
				continue
			}
			// TagContainer rejects masters; that is fine here.
			m.TagContainer(tag.Resolved, tag.Name)
		}
		if p.ResolvedSell != 0 && m.SellContainer() == 0 {
			// SetSellContainer rejects masters; same deal.
			m.SetSellContainer(p.ResolvedSell)
		}
	}
}
