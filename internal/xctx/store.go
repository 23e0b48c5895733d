/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

// Package xctx is a typed, generic, concurrency-safe key/value store that
// also satisfies context.Context, used to hold per-server and per-connection
// state (config, active handler, logger) without a sea of mutex-guarded
// struct fields.
package xctx

import (
	"context"
	"sync"
	"time"
)

// Store is a concurrency-safe map keyed by a comparable type T, doubling as
// a context.Context so it can be threaded through cancellation-aware calls.
type Store[T comparable] interface {
	context.Context

	Load(key T) (val interface{}, ok bool)
	Store(key T, val interface{})
	LoadOrStore(key T, val interface{}) (interface{}, bool)
	Delete(key T)
	Clean()
}

type store[T comparable] struct {
	mu  sync.RWMutex
	m   map[T]interface{}
	ctx context.Context
}

// New returns a Store whose context.Context methods delegate to parent
// (context.Background() if parent is nil).
func New[T comparable](parent context.Context) Store[T] {
	if parent == nil {
		parent = context.Background()
	}
	return &store[T]{m: make(map[T]interface{}), ctx: parent}
}

func (s *store[T]) Load(key T) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *store[T]) Store(key T, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if val == nil {
		delete(s.m, key)
		return
	}
	s.m[key] = val
}

func (s *store[T]) LoadOrStore(key T, val interface{}) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.m[key]; ok {
		return v, true
	}
	s.m[key] = val
	return val, false
}

func (s *store[T]) Delete(key T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

func (s *store[T]) Clean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[T]interface{})
}

func (s *store[T]) Deadline() (time.Time, bool) { return s.ctx.Deadline() }
func (s *store[T]) Done() <-chan struct{}       { return s.ctx.Done() }
func (s *store[T]) Err() error                  { return s.ctx.Err() }
func (s *store[T]) Value(key interface{}) interface{} {
	if k, ok := key.(T); ok {
		if v, found := s.Load(k); found {
			return v
		}
	}
	return s.ctx.Value(key)
}
