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

// Package memory provides an in-process implementation of the account and
// usage storage interfaces.
//
// It is intended for tests and local development only: state does not
// survive a restart and is not shared between processes.
//
// Both kinds of record live in one ordered BTree guarded by a single mutex,
// so every operation is trivially atomic and linearizable.
package memory
