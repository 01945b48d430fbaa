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
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Stopper is whatever owns the Control API listener; rest.Server
// satisfies it without this package importing rest (which imports spv).
type Stopper interface {
	Close() error
}

// ShutdownCoordinator listens for SIGTERM/SIGINT and drives the
// supervisor's single teardown sequence exactly once, regardless of how
// many signals arrive or from how many goroutines Shutdown is called.
//
// Runs one explicit ordered sequence: close the listener, force-stop
// everything, give ports a moment to free, then exit.
type ShutdownCoordinator struct {
	mgr    *Manager
	api    Stopper
	logger *zap.SugaredLogger
	once   sync.Once
}

// NewShutdownCoordinator builds a coordinator for mgr and api.
func NewShutdownCoordinator(mgr *Manager, api Stopper, logger *zap.SugaredLogger) *ShutdownCoordinator {
	return &ShutdownCoordinator{mgr: mgr, api: api, logger: logger}
}

// ListenForSignals installs SIGTERM/SIGINT handlers and calls Shutdown
// the first time either arrives. It does not block.
func (c *ShutdownCoordinator) ListenForSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-ch
		c.logger.Infow("received signal, shutting down", "signal", sig.String())
		c.Shutdown()
	}()
}

// Shutdown runs the teardown sequence exactly once: stop accepting new
// control requests, force-stop every managed server, briefly wait for
// their ports to free, then exit the process.
func (c *ShutdownCoordinator) Shutdown() {
	c.once.Do(func() {
		c.logger.Info("shutting down")

		if c.api != nil {
			if err := c.api.Close(); err != nil {
				c.logger.Warnw("error closing control API listener", "err", err)
			}
		}

		c.mgr.ForceStopAll()

		os.Exit(0)
	})
}
