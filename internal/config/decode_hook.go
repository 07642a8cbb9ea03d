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
	"reflect"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(ByteSize(0)):
			var b ByteSize
			if err := b.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			return b, nil
		case reflect.TypeOf(StoragePolicy("")):
			var p StoragePolicy
			if err := p.UnmarshalText([]byte(s)); err != nil {
				return nil, err
			}
			return p, nil
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the custom ByteSize/StoragePolicy conversions with
// mapstructure's standard text-unmarshaler and duration hooks.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		hookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}
