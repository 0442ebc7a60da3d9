// Copyright 2026 Google LLC. All Rights Reserved.
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

package quota

import "time"

// WeekStart returns midnight of the Monday that starts the week containing t,
// with the week observed in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	dow := int(t.Weekday()) // Sunday is 0.
	day := t.Day() - dow
	if dow == 0 {
		day -= 6
	} else {
		day++
	}
	// time.Date normalizes days outside the month, which handles month and
	// year rollover.
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, loc)
}

// WeekEnd returns the exclusive end of the week starting at weekStart, which
// is also when a standard account's allowance resets.
func WeekEnd(weekStart time.Time) time.Time {
	return weekStart.AddDate(0, 0, 7)
}
