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

import (
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ExhaustedError reports that an account demanded fast mode with none of
// its weekly allowance left.
type ExhaustedError struct {
	Remaining   int
	WeeklyLimit int
	ResetsAt    time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fast mode quota exhausted: %d of %d remaining until %s", e.Remaining, e.WeeklyLimit, e.ResetsAt.Format(time.RFC3339))
}

// GRPCStatus lets status.Code and status.FromError classify the error.
func (e *ExhaustedError) GRPCStatus() *status.Status {
	return status.New(codes.ResourceExhausted, e.Error())
}
