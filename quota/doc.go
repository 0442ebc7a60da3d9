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

// Package quota governs the weekly fast-mode allowance of each account.
//
// A standard account may use fast mode a fixed number of times per
// Monday-anchored calendar week; privileged accounts are unlimited and never
// touch storage. Usage counters are created lazily, on the first check or
// record of a week, and are only ever incremented.
//
// Checking and recording are deliberately not atomic as a pair: two
// concurrent requests can both see one remaining use and both record it, so
// a counter may end the week at the limit plus one. Preventing that would
// serialize every request of an account for little benefit.
package quota
