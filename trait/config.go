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

package trait

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

// Config declares the value tiers and the uniqueness list.  The
// defaults ship embedded; a session may overlay its own list at start.
type Config struct {
	ValueTiers []int    `yaml:"valueTiers"`
	Uniques    []string `yaml:"uniques"`
}

//go:embed traits.yaml
var defaultConfigYAML []byte

// DefaultConfig parses the embedded configuration.
func DefaultConfig() Config {
	cfg, err := ParseConfig(defaultConfigYAML)
	if err != nil {
		// The embedded file is part of the build; failing to parse
		// it is a bug.
		panic(err)
	}
	return cfg
}

// ParseConfig parses a YAML trait configuration.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("trait config: %w", err)
	}
	if len(cfg.ValueTiers) == 0 {
		cfg.ValueTiers = []int{25, 100, 500, 1000}
	}
	return cfg, nil
}

// DefaultEvaluator builds an evaluator from the embedded configuration.
func DefaultEvaluator() *Evaluator {
	return NewEvaluator(DefaultConfig())
}
