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
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Store keeps cosave streams per save slot in a bbolt file.  Outside a
// live host this is what stands in for the game's cosave files (the
// sim and the dump tool both use it).
type Store struct {
	db *bolt.DB
}

var slotsBucket = []byte("slots")

// OpenStore opens (or creates) a store file.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, fmt.Errorf("cosave store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(slotsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSlot serialises the registry's components into the named slot.
func (s *Store) SaveSlot(slot string, r *Registry) error {
	var buf bytes.Buffer
	if err := r.Save(&buf); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(slotsBucket).Put([]byte(slot), buf.Bytes())
	})
}

// LoadSlot feeds the named slot's stream through the registry.
func (s *Store) LoadSlot(slot string, r *Registry, remap RemapFunc) error {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(slotsBucket).Get([]byte(slot))
		if v == nil {
			return fmt.Errorf("cosave store: no slot %q", slot)
		}
		data = append(data, v...)
		return nil
	})
	if err != nil {
		return err
	}
	return r.Load(bytes.NewReader(data), remap)
}

// Slots lists the stored slot names.
func (s *Store) Slots() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(slotsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// RawSlot returns the stored stream bytes for inspection tools.
func (s *Store) RawSlot(slot string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(slotsBucket).Get([]byte(slot))
		if v == nil {
			return fmt.Errorf("cosave store: no slot %q", slot)
		}
		data = append(data, v...)
		return nil
	})
	return data, err
}
