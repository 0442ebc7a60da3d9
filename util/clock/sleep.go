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

package clock

import (
	"context"
	"time"
)

// SleepContext sleeps for d of wall time. Returns ctx.Err() iff the context
// is done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	return SleepSource(ctx, d, System)
}

// SleepSource sleeps for d as measured by s. Returns ctx.Err() iff the
// context is done first.
func SleepSource(ctx context.Context, d time.Duration, s TimeSource) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
