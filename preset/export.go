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

package preset

import (
	"fmt"
	"io"

	"gopkg.in/ini.v1"

	"github.com/slid-mod/slid/host"
	"github.com/slid-mod/slid/network"
)

// Exporter serialises live networks back into the portable INI form,
// translating runtime FormIDs into plugin-relative references.
type Exporter struct {
	names host.PluginNames
}

func NewExporter(names host.PluginNames) *Exporter {
	return &Exporter{names: names}
}

func (e *Exporter) formRef(fid host.FormID) (string, error) {
	plugin, have := e.names.PluginName(fid.PluginIndex())
	if !have {
		return "", fmt.Errorf("preset: export: no plugin at index 0x%02X", fid.PluginIndex())
	}
	return FormatFormRef(plugin, fid.Local()), nil
}

// Export writes one network as a preset.  Unlinked (Pass) stages are
// written explicitly so an import reproduces the pipeline exactly;
// tags are taken from the manager for every container the network
// references.
func (e *Exporter) Export(w io.Writer, m *network.Manager, n *network.Network) error {
	f := ini.Empty()

	head, err := f.NewSection("Preset:" + n.Name)
	if err != nil {
		return err
	}
	master, err := e.formRef(n.Master)
	if err != nil {
		return err
	}
	head.NewKey("Master", master)
	head.NewKey("UserGenerated", "true")

	filters, err := f.NewSection("Preset:" + n.Name + ":Filters")
	if err != nil {
		return err
	}
	for _, s := range n.Stages {
		switch {
		case s.Container == 0:
			filters.NewKey(string(s.Filter), "Pass")
		case s.Container == n.Master:
			filters.NewKey(string(s.Filter), "Keep")
		default:
			ref, err := e.formRef(s.Container)
			if err != nil {
				return err
			}
			filters.NewKey(string(s.Filter), ref)
		}
	}

	var tagged []host.FormID
	for _, fid := range n.Destinations() {
		if _, have := m.Tag(fid); have {
			tagged = append(tagged, fid)
		}
	}
	if len(tagged) > 0 {
		tags, err := f.NewSection("Preset:" + n.Name + ":Tags")
		if err != nil {
			return err
		}
		for _, fid := range tagged {
			ref, err := e.formRef(fid)
			if err != nil {
				return err
			}
			name, _ := m.Tag(fid)
			tags.NewKey(ref, name)
		}
	}

	if n.WhooshConfigured {
		whoosh, err := f.NewSection("Preset:" + n.Name + ":Whoosh")
		if err != nil {
			return err
		}
		for _, id := range n.WhooshFilters {
			whoosh.NewKey(string(id), "true")
		}
	}

	_, err = f.WriteTo(w)
	return err
}
