// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config decodes and validates the options that configure a memfs
// filesystem instance: quota, node limits, the default storage policy, and
// the promotion-related tuning constants. It is a library surface only —
// no cmd binds flags to it directly, since a host CLI is an external
// collaborator.
package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of options that shape a filesystem instance, per
// the options table.
type Config struct {
	// MaxQuota is the hard byte ceiling across all file storage.
	MaxQuota ByteSize `mapstructure:"max_quota"`

	// ChunkOverheadEstimate is the per-chunk accounting constant charged
	// against quota for sequential storage. Zero means "use the built-in
	// default" (storage.ChunkOverheadEstimate).
	ChunkOverheadEstimate ByteSize `mapstructure:"chunk_overhead_estimate"`

	// PromotionHardLimit refuses promotion of sequential files larger
	// than this size. Zero means "use the built-in default".
	PromotionHardLimit ByteSize `mapstructure:"promotion_hard_limit"`

	// MaxNodes optionally caps the number of directory+file nodes. Zero
	// means unlimited.
	MaxNodes int `mapstructure:"max_nodes"`

	// DefaultStorage selects the storage representation new files start
	// life as.
	DefaultStorage StoragePolicy `mapstructure:"default_storage"`
}

// Default returns the configuration a filesystem gets when no options are
// supplied: a generous quota, auto storage, and no node limit.
func Default() Config {
	return Config{
		MaxQuota:              256 << 20, // 256 MiB, matching the original implementation's default.
		ChunkOverheadEstimate: 0,
		PromotionHardLimit:    0,
		MaxNodes:              0,
		DefaultStorage:        StorageAuto,
	}
}

// BindFlags registers the flags a host binary could use to override
// Config fields, namespaced under prefix (e.g. "memfs"). It is provided
// for embedders that want flag-driven configuration; it does not itself
// parse os.Args or call pflag.Parse.
func BindFlags(fs *pflag.FlagSet, prefix string, v *viper.Viper) error {
	d := Default()
	fs.Int64(prefix+"-max-quota", int64(d.MaxQuota), "maximum bytes of file storage")
	fs.Int64(prefix+"-chunk-overhead-estimate", int64(d.ChunkOverheadEstimate), "per-chunk quota overhead for sequential storage (0 = built-in default)")
	fs.Int64(prefix+"-promotion-hard-limit", int64(d.PromotionHardLimit), "largest sequential file size eligible for promotion (0 = built-in default)")
	fs.Int(prefix+"-max-nodes", d.MaxNodes, "maximum number of directory and file nodes (0 = unlimited)")
	fs.String(prefix+"-default-storage", string(d.DefaultStorage), "default storage policy: auto, sequential, or random_access")

	keys := map[string]string{
		"max_quota":               prefix + "-max-quota",
		"chunk_overhead_estimate": prefix + "-chunk-overhead-estimate",
		"promotion_hard_limit":    prefix + "-promotion-hard-limit",
		"max_nodes":               prefix + "-max-nodes",
		"default_storage":         prefix + "-default-storage",
	}
	for key, flag := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

// Load decodes a Config from v, falling back to Default for any key that is
// unset, then validates the result.
func Load(v *viper.Viper) (Config, error) {
	d := Default()
	v.SetDefault("max_quota", int64(d.MaxQuota))
	v.SetDefault("chunk_overhead_estimate", int64(d.ChunkOverheadEstimate))
	v.SetDefault("promotion_hard_limit", int64(d.PromotionHardLimit))
	v.SetDefault("max_nodes", d.MaxNodes)
	v.SetDefault("default_storage", string(d.DefaultStorage))

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
