// Copyright 2022 VectisDB
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/BurntSushi/toml"

	"github.com/vectisdb/vectis/pkg/logutil"
)

// CacheConfig tunes shared-subexpression result caching during
// expression evaluation.
type CacheConfig struct {
	// Enabled turns on result memoization for shared subexpressions.
	Enabled bool `toml:"enabled"`
	// MaxSharedSubexprResultsCached caps the number of distinct inputs a
	// shared subexpression keeps results for.
	MaxSharedSubexprResultsCached int `toml:"max-shared-subexpr-results-cached"`
}

type Config struct {
	// MemoryCapBytes caps the evaluation memory pool, 0 means no cap.
	MemoryCapBytes int64 `toml:"memory-cap-bytes"`
	// VectorPoolSize caps the number of recycled vectors kept per process.
	VectorPoolSize int `toml:"vector-pool-size"`

	Cache CacheConfig        `toml:"cache"`
	Log   logutil.LogConfig  `toml:"log"`
}

func Default() Config {
	return Config{
		MemoryCapBytes: 0,
		VectorPoolSize: 64,
		Cache: CacheConfig{
			Enabled:                       true,
			MaxSharedSubexprResultsCached: 10,
		},
		Log: logutil.LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a TOML config file, filling unset fields with defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
