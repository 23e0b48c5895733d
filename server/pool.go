/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package server

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs several named Servers together -- e.g. a plaintext listener
// alongside its TLS twin, or one virtual host per Config -- starting and
// stopping them as one unit the way the teacher's httpserver/pool runs a
// fleet of net/http.Servers.
type Pool struct {
	mu      sync.Mutex
	members map[string]*Server
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{members: map[string]*Server{}}
}

// Add registers srv under name; it does not start it. Add panics if name
// is already registered, since that indicates a programming error in pool
// construction rather than a runtime condition to recover from.
func (p *Pool) Add(name string, srv *Server) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.members[name]; exists {
		panic(fmt.Sprintf("server: pool already has a member named %q", name))
	}
	p.members[name] = srv
}

// Get returns the named member, or nil if absent.
func (p *Pool) Get(name string) *Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[name]
}

// Names lists every registered member.
func (p *Pool) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.members))
	for n := range p.members {
		names = append(names, n)
	}
	return names
}

// StartAll starts every member concurrently, returning the first error
// encountered and leaving the rest of the members started -- callers
// should StopAll on failure to avoid leaking partially-started listeners.
func (p *Pool) StartAll(ctx context.Context) error {
	p.mu.Lock()
	members := make(map[string]*Server, len(p.members))
	for k, v := range p.members {
		members[k] = v
	}
	p.mu.Unlock()

	var group errgroup.Group
	for name, srv := range members {
		name, srv := name, srv
		group.Go(func() error {
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("server: starting %q: %w", name, err)
			}
			return nil
		})
	}
	return group.Wait()
}

// StopAll stops every member concurrently, collecting every error rather
// than stopping at the first so one stubborn member never masks another's
// shutdown failure.
func (p *Pool) StopAll() error {
	p.mu.Lock()
	members := make(map[string]*Server, len(p.members))
	for k, v := range p.members {
		members[k] = v
	}
	p.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for name, srv := range members {
		name, srv := name, srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Stop(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("server: stopping %q: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %v", joined, e)
	}
	return joined
}

// Healthy reports every member's IsRunning state, keyed by name, the shape
// a health-check endpoint built outside this module would scrape.
func (p *Pool) Healthy() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.members))
	for name, srv := range p.members {
		out[name] = srv.IsRunning()
	}
	return out
}
