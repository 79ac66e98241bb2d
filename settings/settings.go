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

// Package settings reads and writes the mod's INI settings file.  Every
// setter writes the file back immediately, so external edits and
// in-game changes stay reconciled.
package settings

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/ini.v1"

	"github.com/slid-mod/slid/sales"
)

const section = "General"

// Settings is the live view of the settings file.
type Settings struct {
	path  string
	file  *ini.File
	log   *slog.Logger
	level *slog.LevelVar

	ModEnabled                bool
	DebugLogging              bool
	SummonEnabled             bool
	IncludeUnlinkedContainers bool

	SellIntervalHours float64
	SellBatchSize     int
	SellPricePercent  float64

	VendorIntervalHours float64
	VendorBatchSize     int
	VendorPricePercent  float64
	VendorCost          int

	SellSchedule string
}

func defaults() Settings {
	return Settings{
		ModEnabled:          true,
		SummonEnabled:       true,
		SellIntervalHours:   24,
		SellBatchSize:       10,
		SellPricePercent:    0.5,
		VendorIntervalHours: 24,
		VendorBatchSize:     5,
		VendorPricePercent:  0.5,
		VendorCost:          500,
	}
}

// Load reads the settings file, filling defaults for anything missing.
// A missing file is not an error; the defaults are written on the first
// setter call.  level, when non-nil, is kept in sync with
// bDebugLogging.
func Load(path string, level *slog.LevelVar, log *slog.Logger) (*Settings, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Settings{path: path, log: log.With("component", "settings"), level: level}
	*s = assign(*s, defaults())

	f, err := ini.LooseLoad(path)
	if err != nil {
		return nil, fmt.Errorf("settings: %s: %w", path, err)
	}
	s.file = f
	sec := f.Section(section)

	s.ModEnabled = sec.Key("bModEnabled").MustBool(s.ModEnabled)
	s.DebugLogging = sec.Key("bDebugLogging").MustBool(s.DebugLogging)
	s.SummonEnabled = sec.Key("bSummonEnabled").MustBool(s.SummonEnabled)
	s.IncludeUnlinkedContainers = sec.Key("bIncludeUnlinkedContainers").MustBool(s.IncludeUnlinkedContainers)

	s.SellIntervalHours = sec.Key("fSellIntervalHours").MustFloat64(s.SellIntervalHours)
	s.SellBatchSize = sec.Key("iSellBatchSize").MustInt(s.SellBatchSize)
	s.SellPricePercent = sec.Key("fSellPricePercent").MustFloat64(s.SellPricePercent)
	s.VendorIntervalHours = sec.Key("fVendorIntervalHours").MustFloat64(s.VendorIntervalHours)
	s.VendorBatchSize = sec.Key("iVendorBatchSize").MustInt(s.VendorBatchSize)
	s.VendorPricePercent = sec.Key("fVendorPricePercent").MustFloat64(s.VendorPricePercent)
	s.VendorCost = sec.Key("iVendorCost").MustInt(s.VendorCost)
	s.SellSchedule = sec.Key("sSellSchedule").MustString(s.SellSchedule)

	s.applyLevel()
	return s, nil
}

// assign copies the value fields of src onto dst, keeping dst's
// handles.
func assign(dst, src Settings) Settings {
	src.path, src.file, src.log, src.level = dst.path, dst.file, dst.log, dst.level
	return src
}

func (s *Settings) applyLevel() {
	if s.level == nil {
		return
	}
	if s.DebugLogging {
		s.level.Set(slog.LevelDebug)
	} else {
		s.level.Set(slog.LevelInfo)
	}
}

// SalesConfig maps the tuning keys onto the scheduler's config block.
func (s *Settings) SalesConfig() sales.Config {
	return sales.Config{
		SellIntervalHours:   s.SellIntervalHours,
		SellBatchSize:       s.SellBatchSize,
		SellPricePercent:    s.SellPricePercent,
		VendorIntervalHours: s.VendorIntervalHours,
		VendorBatchSize:     s.VendorBatchSize,
		VendorPricePercent:  s.VendorPricePercent,
		VendorCost:          s.VendorCost,
		SellSchedule:        s.SellSchedule,
	}
}

// Save writes the whole block back, preserving unknown keys and
// comments the user may have added.
func (s *Settings) Save() error {
	sec := s.file.Section(section)
	setBool := func(key string, v bool) {
		if v {
			sec.Key(key).SetValue("1")
		} else {
			sec.Key(key).SetValue("0")
		}
	}
	setBool("bModEnabled", s.ModEnabled)
	setBool("bDebugLogging", s.DebugLogging)
	setBool("bSummonEnabled", s.SummonEnabled)
	setBool("bIncludeUnlinkedContainers", s.IncludeUnlinkedContainers)
	sec.Key("fSellIntervalHours").SetValue(fmt.Sprintf("%g", s.SellIntervalHours))
	sec.Key("iSellBatchSize").SetValue(fmt.Sprintf("%d", s.SellBatchSize))
	sec.Key("fSellPricePercent").SetValue(fmt.Sprintf("%g", s.SellPricePercent))
	sec.Key("fVendorIntervalHours").SetValue(fmt.Sprintf("%g", s.VendorIntervalHours))
	sec.Key("iVendorBatchSize").SetValue(fmt.Sprintf("%d", s.VendorBatchSize))
	sec.Key("fVendorPricePercent").SetValue(fmt.Sprintf("%g", s.VendorPricePercent))
	sec.Key("iVendorCost").SetValue(fmt.Sprintf("%d", s.VendorCost))
	sec.Key("sSellSchedule").SetValue(s.SellSchedule)

	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// Set applies fn to the settings and writes the file back, keeping the
// log level in sync.  The script surface funnels every setter through
// here.
func (s *Settings) Set(fn func(*Settings)) error {
	fn(s)
	s.applyLevel()
	if err := s.Save(); err != nil {
		s.log.Warn("settings write-back failed", "error", err)
		return err
	}
	return nil
}

// Remove deletes the settings file (console `reset` helper).
func (s *Settings) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	s.file = ini.Empty()
	*s = assign(*s, defaults())
	s.applyLevel()
	return nil
}
