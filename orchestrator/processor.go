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

package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Job is one unit of external work.
type Job struct {
	AccountID  string
	Privileged bool
	Input      []byte
	// Fast is set when the account is served in fast mode.
	Fast bool
}

// Processor performs the costly external operation that credits pay for.
// Implementations must honor ctx cancellation.
type Processor interface {
	Process(ctx context.Context, job Job) ([]byte, error)
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job Job) ([]byte, error)

// Process calls f(ctx, job).
func (f ProcessorFunc) Process(ctx context.Context, job Job) ([]byte, error) {
	return f(ctx, job)
}

// FastModeHeader tells an HTTP provider which mode the job runs in.
const FastModeHeader = "X-Fast-Mode"

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 32 << 20

// HTTPProcessor posts the job input to an external provider and returns the
// response body. Any non-2xx response is a failure.
type HTTPProcessor struct {
	URL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Process implements Processor.
func (p *HTTPProcessor) Process(ctx context.Context, job Job) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(job.Input))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set(FastModeHeader, strconv.FormatBool(job.Fast))

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response from %v: %v", p.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider %v returned %v: %q", p.URL, resp.Status, truncate(body, 256))
	}
	return body, nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
