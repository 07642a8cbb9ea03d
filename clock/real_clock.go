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

// Package clock provides an injectable notion of time, so that code which
// stamps directory and file timestamps can be exercised deterministically in
// tests without sleeping real wall time.
package clock

import "time"

// Clock knows the current time and can notify a caller after a duration has
// elapsed.
type Clock interface {
	// Now returns the current time according to this clock.
	Now() time.Time

	// After returns a channel on which the current time is sent once the
	// given duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock is backed by the actual system clock.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Notifies on the return channel after the specified time has passed.
func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var (
	_ Clock = RealClock{}
	_ Clock = &SimulatedClock{}
)
