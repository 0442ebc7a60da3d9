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

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"k8s.io/klog/v2"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Set for insufficient balance denials.
	Balance   *int64 `json:"balance,omitempty"`
	Requested *int64 `json:"requested,omitempty"`

	// Set for fast mode quota denials.
	RemainingFastGenerations *int       `json:"remainingFastGenerations,omitempty"`
	WeeklyLimit              *int       `json:"weeklyLimit,omitempty"`
	ResetsAt                 *time.Time `json:"resetsAt,omitempty"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorResponseFor builds the HTTP status and body reporting err. Errors
// are classified by their gRPC status code.
func errorResponseFor(err error) (int, errorResponse) {
	code := status.Code(err)
	detail := errorDetail{Code: code.String(), Message: err.Error()}
	switch code {
	case codes.Unknown, codes.Internal, codes.DataLoss:
		detail.Message = "internal error"
	}

	if ib, ok := storage.AsInsufficientBalance(err); ok {
		detail.Balance = &ib.Balance
		detail.Requested = &ib.Requested
	}
	if ee, ok := asExhausted(err); ok {
		detail.RemainingFastGenerations = &ee.Remaining
		detail.WeeklyLimit = &ee.WeeklyLimit
		detail.ResetsAt = &ee.ResetsAt
	}
	return runtime.HTTPStatusFromCode(code), errorResponse{Error: detail}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := errorResponseFor(err)
	if code >= http.StatusInternalServerError {
		klog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		klog.V(1).Infof("%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("Failed to write response: %v", err)
	}
}

func asExhausted(err error) (*quota.ExhaustedError, bool) {
	var ee *quota.ExhaustedError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
