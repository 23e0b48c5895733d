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

// Package xatm is a generic, type-safe wrapper around sync/atomic.Value, the
// concurrency primitive the server/conn packages use for lock-free state
// (running flag, current handler, current config) shared across goroutines.
package xatm

import "sync/atomic"

// Value holds a T behind an atomic.Value, returning the zero T on first Load.
type Value[T any] struct {
	v atomic.Value
}

type box[T any] struct{ val T }

func (o *Value[T]) Load() T {
	var zero T
	i := o.v.Load()
	if i == nil {
		return zero
	}
	b, ok := i.(box[T])
	if !ok {
		return zero
	}
	return b.val
}

func (o *Value[T]) Store(val T) {
	o.v.Store(box[T]{val: val})
}
