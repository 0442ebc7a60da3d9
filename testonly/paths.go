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

// Package testonly contains helpers shared by tests.
package testonly

import (
	"path"
	"path/filepath"
	"runtime"
)

// RelativeToPackage resolves p relative to the directory of the calling
// source file and returns it as an absolute path. Test helpers use it to find
// schema files regardless of which package's test is running.
func RelativeToPackage(p string) string {
	_, file, _, ok := runtime.Caller(1)
	if !ok {
		panic("cannot get caller information")
	}

	absPath, err := filepath.Abs(filepath.Join(path.Dir(file), p))
	if err != nil {
		panic(err)
	}
	return absPath
}
