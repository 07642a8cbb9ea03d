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

package config

import "fmt"

const (
	// MaxChunkOverheadEstimate bounds chunk_overhead_estimate to prevent a
	// misconfigured value from making every small write vastly more
	// expensive in quota than the bytes it actually stores.
	MaxChunkOverheadEstimate = 1 << 20 // 1 MiB
)

// Validate rejects nonsensical configuration values.
func Validate(c Config) error {
	if c.MaxQuota < 0 {
		return fmt.Errorf("max_quota must be >= 0, got %d", c.MaxQuota)
	}
	if c.ChunkOverheadEstimate < 0 {
		return fmt.Errorf("chunk_overhead_estimate must be >= 0, got %d", c.ChunkOverheadEstimate)
	}
	if c.ChunkOverheadEstimate > MaxChunkOverheadEstimate {
		return fmt.Errorf("chunk_overhead_estimate %d exceeds sanity ceiling %d", c.ChunkOverheadEstimate, MaxChunkOverheadEstimate)
	}
	if c.PromotionHardLimit < 0 {
		return fmt.Errorf("promotion_hard_limit must be >= 0, got %d", c.PromotionHardLimit)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must be >= 0, got %d", c.MaxNodes)
	}
	switch c.DefaultStorage {
	case StorageAuto, StorageSequential, StorageRandomAccess, "":
	default:
		return fmt.Errorf("invalid default_storage value: %q", c.DefaultStorage)
	}
	return nil
}
