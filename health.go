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

package spv

import (
	"context"
	"net"
	"strconv"
	"time"
)

// Health Prober constants.
const (
	healthInterval        = 5 * time.Second
	healthConnectTimeout  = 2 * time.Second
	firstHealthProbeDelay = 3 * time.Second
)

// probeOnce reports whether a bare TCP connection to hostname:port
// succeeds within timeout. net.Dialer resolves both A and AAAA records
// and races them (RFC 6555), which is the dual-stack DNS behavior this
// component needs; there is no reason to hand-roll resolution on top of
// it.
//
// Grounded on mdarshad-ai-MCP-Manager's health/loop.go target check, which
// probes the same way: connect, don't speak the protocol.
func probeOnce(ctx context.Context, hostname string, port int, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(hostname, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// runHealthProbe ticks probeOnce against hostname:port, starting after
// firstHealthProbeDelay, and reports each result through report until ctx
// is cancelled (the Manager cancels it the moment a server leaves
// Running). Runs on its own goroutine, one per running server.
func runHealthProbe(ctx context.Context, hostname string, port int, report func(healthy bool)) {
	if port == 0 {
		return
	}

	initial := time.NewTimer(firstHealthProbeDelay)
	defer initial.Stop()
	select {
	case <-ctx.Done():
		return
	case <-initial.C:
	}

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		report(probeOnce(ctx, hostname, port, healthConnectTimeout))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
