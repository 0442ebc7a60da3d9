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

// Package server exposes the credit ledger, the fast mode quota governor and
// orchestrated operations as a JSON API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pixelmill/fastquota/ledger"
	"github.com/pixelmill/fastquota/monitoring"
	"github.com/pixelmill/fastquota/orchestrator"
	"github.com/pixelmill/fastquota/quota"
	"github.com/pixelmill/fastquota/util/clock"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxBodyBytes bounds request bodies, which include operation inputs.
const maxBodyBytes = 8 << 20

// Options configures a Server.
type Options struct {
	// Identity resolves callers. Required.
	Identity IdentityFunc
	// Runner serves /v1/operations. Without it the endpoint answers
	// Unimplemented.
	Runner        *orchestrator.Runner
	MetricFactory monitoring.MetricFactory
	TimeSource    clock.TimeSource
}

// Server holds the API handlers.
type Server struct {
	ledger   *ledger.Ledger
	governor *quota.Governor
	opts     Options
	monitor  *monitoring.HTTPStatsMonitor
}

// New returns a Server.
func New(l *ledger.Ledger, g *quota.Governor, opts Options) *Server {
	return &Server{
		ledger:   l,
		governor: g,
		opts:     opts,
		monitor:  monitoring.NewHTTPStatsMonitor(opts.TimeSource, opts.MetricFactory),
	}
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	for _, r := range []struct {
		pattern, name string
		h             func(http.ResponseWriter, *http.Request, Identity)
	}{
		{"GET /v1/fastmode/eligibility", "eligibility", s.eligibility},
		{"GET /v1/fastmode/status", "status", s.status},
		{"POST /v1/fastmode/usage", "usage", s.recordUsage},
		{"GET /v1/credits", "balance", s.balance},
		{"POST /v1/credits:increment", "increment", s.increment},
		{"POST /v1/credits:decrement", "decrement", s.decrement},
		{"POST /v1/operations", "operations", s.operation},
	} {
		mux.Handle(r.pattern, s.monitor.Wrap(r.name, s.authenticated(r.h)))
	}
}

// Handler returns a handler serving only the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

func (s *Server) authenticated(h func(http.ResponseWriter, *http.Request, Identity)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.opts.Identity(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h(w, r, id)
	})
}

type eligibilityResponse struct {
	CanUse                   bool `json:"canUse"`
	RemainingFastGenerations int  `json:"remainingFastGenerations"`
	WeeklyLimit              int  `json:"weeklyLimit"`
	IsPrivileged             bool `json:"isPrivileged"`
}

func toEligibilityResponse(e quota.Eligibility) eligibilityResponse {
	return eligibilityResponse{
		CanUse:                   e.CanUse,
		RemainingFastGenerations: e.RemainingFastGenerations,
		WeeklyLimit:              e.WeeklyLimit,
		IsPrivileged:             e.Privileged,
	}
}

type statusResponse struct {
	eligibilityResponse
	UsedThisWeek int `json:"usedThisWeek"`
	// WeekStart is the calendar date the week starts on.
	WeekStart string    `json:"weekStart"`
	ResetsAt  time.Time `json:"resetsAt"`
}

type usageResponse struct {
	UsedThisWeek int `json:"usedThisWeek"`
}

type creditsResponse struct {
	Credits int64 `json:"credits"`
}

type amountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type operationRequest struct {
	Input       []byte `json:"input"`
	RequireFast bool   `json:"requireFast"`
}

type operationResponse struct {
	Output       []byte              `json:"output"`
	FastMode     bool                `json:"fastMode"`
	Credits      int64               `json:"credits"`
	Eligibility  eligibilityResponse `json:"eligibility"`
	UsedThisWeek int                 `json:"usedThisWeek"`
	CacheHit     bool                `json:"cacheHit"`
}

func (s *Server) eligibility(w http.ResponseWriter, r *http.Request, id Identity) {
	e, err := s.governor.CheckEligibility(r.Context(), id.AccountID, id.Privileged)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEligibilityResponse(e))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request, id Identity) {
	st, err := s.governor.GetStatus(r.Context(), id.AccountID, id.Privileged)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		eligibilityResponse: toEligibilityResponse(st.Eligibility),
		UsedThisWeek:        st.UsedThisWeek,
		WeekStart:           st.WeekStart.Format("2006-01-02"),
		ResetsAt:            st.ResetsAt,
	})
}

// recordUsage is a no-op for privileged callers, whose usage is not counted.
func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request, id Identity) {
	if id.Privileged {
		writeJSON(w, http.StatusOK, usageResponse{})
		return
	}
	n, err := s.governor.RecordUsage(r.Context(), id.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{UsedThisWeek: n})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request, id Identity) {
	c, err := s.ledger.Balance(r.Context(), id.AccountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{Credits: c})
}

func (s *Server) increment(w http.ResponseWriter, r *http.Request, id Identity) {
	s.mutate(w, r, id, s.ledger.Increment)
}

func (s *Server) decrement(w http.ResponseWriter, r *http.Request, id Identity) {
	s.mutate(w, r, id, s.ledger.Decrement)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, id Identity, op func(ctx context.Context, id string, amount int64) (int64, error)) {
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := op(r.Context(), id.AccountID, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, creditsResponse{Credits: c})
}

func (s *Server) operation(w http.ResponseWriter, r *http.Request, id Identity) {
	if s.opts.Runner == nil {
		writeError(w, r, status.Error(codes.Unimplemented, "operations are not enabled on this server"))
		return
	}
	var req operationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.opts.Runner.Run(r.Context(), orchestrator.Request{
		AccountID:   id.AccountID,
		Privileged:  id.Privileged,
		Input:       req.Input,
		RequireFast: req.RequireFast,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, operationResponse{
		Output:       out.Output,
		FastMode:     out.FastMode,
		Credits:      out.Credits,
		Eligibility:  toEligibilityResponse(out.Eligibility),
		UsedThisWeek: out.UsedThisWeek,
		CacheHit:     out.CacheHit,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return status.Errorf(codes.InvalidArgument, "request body larger than %d bytes", tooLarge.Limit)
		}
		return status.Errorf(codes.InvalidArgument, "malformed request body: %v", err)
	}
	return nil
}

// parseAmount accepts only a positive JSON integer. Strings, fractions and
// exponents are refused rather than coerced.
func parseAmount(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, status.Error(codes.InvalidArgument, "amount is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "amount must be an integer, got %s", s)
	}
	if n <= 0 {
		return 0, status.Errorf(codes.InvalidArgument, "amount must be positive, got %d", n)
	}
	return n, nil
}
