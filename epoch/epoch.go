// Copyright 2026 Blink Labs Software
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

// Package epoch computes the weekly voting windows that anchor squad
// proposals. Every window starts on a Friday at 00:00:00 UTC and lasts
// exactly seven days.
package epoch

import "time"

// Length is the fixed duration of a voting epoch
const Length = 7 * 24 * time.Hour

// anchorWeekday is the day of the week every epoch starts on
const anchorWeekday = time.Friday

// Clock returns the current time. It is injected into services so that
// epoch and expiry logic can be tested against a fixed instant.
type Clock func() time.Time

// SystemClock returns the wall clock time in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a Clock that always reports t
func FixedClock(t time.Time) Clock {
	return func() time.Time {
		return t
	}
}

// Window is a half-open voting window [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// ForTime returns the epoch window containing t. Start is the most recent
// Friday 00:00:00 UTC at or before t.
func ForTime(t time.Time) Window {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// Days elapsed since the last anchor weekday, in the range [0, 6]
	daysSince := (int(midnight.Weekday()) - int(anchorWeekday) + 7) % 7
	start := midnight.AddDate(0, 0, -daysSince)
	return Window{
		Start: start,
		End:   start.Add(Length),
	}
}

// Current returns the epoch window for the time reported by clock
func Current(clock Clock) Window {
	if clock == nil {
		clock = SystemClock
	}
	return ForTime(clock())
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Next returns the window immediately following w
func (w Window) Next() Window {
	return Window{
		Start: w.End,
		End:   w.End.Add(Length),
	}
}
