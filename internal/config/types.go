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

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ByteSize is the datatype for size-like config fields (max-quota,
// promotion-hard-limit) that accept a human-friendly suffixed string such
// as "512MiB" or a bare byte count such as "536870912".
type ByteSize int64

var byteSizeSuffixes = []struct {
	suffix string
	mult   int64
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

func (b *ByteSize) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	for _, suf := range byteSizeSuffixes {
		if strings.HasSuffix(s, suf.suffix) {
			numPart := strings.TrimSpace(strings.TrimSuffix(s, suf.suffix))
			n, err := strconv.ParseFloat(numPart, 64)
			if err != nil {
				return fmt.Errorf("invalid byte size %q: %w", s, err)
			}
			*b = ByteSize(int64(n * float64(suf.mult)))
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(b), 10)), nil
}

// StoragePolicy is the datatype for default-storage: which byte-storage
// representation new files start out as and whether they may promote.
type StoragePolicy string

const (
	// StorageAuto creates sequential storage and allows promotion on a
	// non-tail write.
	StorageAuto StoragePolicy = "auto"
	// StorageSequential creates sequential storage and forbids promotion:
	// a non-tail write fails with ErrUnsupported.
	StorageSequential StoragePolicy = "sequential"
	// StorageRandomAccess creates random-access storage from the start.
	StorageRandomAccess StoragePolicy = "random_access"
)

var validStoragePolicies = []string{string(StorageAuto), string(StorageSequential), string(StorageRandomAccess)}

func (p *StoragePolicy) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	if !slices.Contains(validStoragePolicies, v) {
		return fmt.Errorf("invalid default_storage value: %q, expected one of %v", v, validStoragePolicies)
	}
	*p = StoragePolicy(v)
	return nil
}

func (p StoragePolicy) MarshalText() ([]byte, error) {
	return []byte(p), nil
}
