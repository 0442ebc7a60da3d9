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

package testonly

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRelativeToPackage(t *testing.T) {
	got := RelativeToPackage("paths.go")
	if !filepath.IsAbs(got) {
		t.Errorf("RelativeToPackage()=%q, want an absolute path", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("Stat(%q): %v", got, err)
	}
}
