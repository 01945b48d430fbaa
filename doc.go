// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spv implements a local development-server supervisor: it loads
// a declarative list of child processes from configuration, launches and
// restart-governs them, captures their stdout/stderr into bounded
// per-server buffers, probes their liveness over TCP, and hands all of
// that off to the rest package's HTTP/JSON control surface.
//
// The Manager is the single point of entry for every collaborator (the
// Control API, the CLI, the shutdown coordinator): construct one with
// New, then drive it with Start/Stop/Restart/ReloadSettings. All mutation
// of a server's runtime state happens under the Manager's own lock; output
// readers only append to the self-locking LogBuffer, and timers, probes,
// and exit watchers change state only through Manager methods.
package spv
