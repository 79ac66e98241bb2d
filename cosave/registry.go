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

package cosave

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Component owns one record in the stream.  Load receives the record's
// saved version and must accept every version up to Version().
type Component interface {
	Tag() Tag
	Version() uint32
	Save(*Encoder) error
	Load(d *Decoder, version uint32) error
	Revert()
}

// Registry drives the host's save, load, and revert callbacks across
// the registered components, in registration order.
type Registry struct {
	components []Component
	log        *slog.Logger
}

// NewRegistry creates a registry logging through log (nil for the
// default logger).
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{log: log.With("component", "cosave")}
}

// Register appends a component.  Registration order is record order.
func (r *Registry) Register(c Component) {
	r.components = append(r.components, c)
}

// Save writes every component's record to w.
func (r *Registry) Save(w io.Writer) error {
	for _, c := range r.components {
		rec, err := r.encodeRecord(c)
		if err != nil {
			return fmt.Errorf("cosave: save %s: %w", c.Tag(), err)
		}
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) encodeRecord(c Component) ([]byte, error) {
	var payload bytes.Buffer
	enc := NewEncoder(&payload)
	if err := c.Save(enc); err != nil {
		return nil, err
	}
	if err := enc.Err(); err != nil {
		return nil, err
	}
	var rec bytes.Buffer
	h := recordHeader{tag: c.Tag(), version: c.Version(), length: uint32(payload.Len())}
	if err := writeHeader(&rec, h); err != nil {
		return nil, err
	}
	if _, err := payload.WriteTo(&rec); err != nil {
		return nil, err
	}
	return rec.Bytes(), nil
}

// Load reads records from rd until EOF, dispatching by tag.  Unknown
// tags are skipped (forward compatibility); a record whose component
// fails to load is skipped with a warning, not fatal.
func (r *Registry) Load(rd io.Reader, remap RemapFunc) error {
	if remap == nil {
		remap = IdentityRemap
	}
	for {
		h, err := readHeader(rd)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("cosave: load: %w", err)
		}
		payload := make([]byte, int(h.length))
		if _, err := io.ReadFull(rd, payload); err != nil {
			return fmt.Errorf("cosave: load %s: %w", h.tag, err)
		}
		c := r.find(h.tag)
		if c == nil {
			r.log.Warn("skipping unknown cosave record", "tag", h.tag.String())
			continue
		}
		if h.version > c.Version() {
			r.log.Warn("cosave record from a newer version",
				"tag", h.tag.String(), "saved", h.version, "supported", c.Version())
			continue
		}
		dec := NewDecoder(bytes.NewReader(payload))
		dec.Remap = remap
		if err := c.Load(dec, h.version); err != nil {
			r.log.Warn("cosave record failed to load", "tag", h.tag.String(), "error", err)
			continue
		}
		if err := dec.Err(); err != nil {
			r.log.Warn("cosave record truncated", "tag", h.tag.String(), "error", err)
		}
	}
}

func (r *Registry) find(t Tag) Component {
	for _, c := range r.components {
		if c.Tag() == t {
			return c
		}
	}
	return nil
}

// Revert clears every component's in-memory state.
func (r *Registry) Revert() {
	for _, c := range r.components {
		c.Revert()
	}
}
