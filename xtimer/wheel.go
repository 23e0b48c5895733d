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

// Package xtimer schedules deadline callbacks without allocating a stdlib
// time.Timer per deadline. It buckets pending deadlines into a single-level
// wheel cascading through an overflow list, driven by one time.Ticker.
// h2.Conn uses it for its idle timeout; conn's HTTP/1.1 idle and request
// deadlines are net.Conn deadlines and do not go through this package.
// There's no maintained third-party timing-wheel package in
// the dependency set this module otherwise draws from, and a bespoke wheel
// over stdlib primitives is exactly what a connection driver like this one
// would hand-roll.
package xtimer

import (
	"container/list"
	"sync"
	"time"
)

// Callback runs when a scheduled deadline elapses, on the Wheel's own
// goroutine; it must not block.
type Callback func()

// entry is one scheduled deadline, reachable from its slot's list.Element
// so Cancel can remove it in O(1).
type entry struct {
	deadline   time.Time
	cb         Callback
	elem       *list.Element
	slot       int
	inOverflow bool
	cancelled  bool
}

// Handle lets a caller cancel a scheduled Callback before it fires.
type Handle struct {
	e *entry
	w *Wheel
}

// Cancel prevents the scheduled Callback from firing, if it hasn't already.
func (h *Handle) Cancel() {
	h.w.mu.Lock()
	defer h.w.mu.Unlock()
	if h.e.cancelled {
		return
	}
	h.e.cancelled = true
	if h.e.inOverflow {
		h.w.overflow.Remove(h.e.elem)
	} else {
		h.w.slots[h.e.slot].Remove(h.e.elem)
	}
}

// Wheel is a single-level timing wheel of numSlots buckets advanced every
// tick; deadlines further out than one revolution sit in an overflow list
// and get re-bucketed each time the wheel completes a revolution, the
// classic cascading technique for bounding timer-management cost.
type Wheel struct {
	mu       sync.Mutex
	tick     time.Duration
	slots    []*list.List
	cur      int
	overflow *list.List
	start    time.Time

	stop chan struct{}
}

// NewWheel creates a Wheel with the given tick resolution and number of
// slots (so it covers tick*numSlots before an entry falls into overflow).
func NewWheel(tick time.Duration, numSlots int) *Wheel {
	w := &Wheel{
		tick:     tick,
		slots:    make([]*list.List, numSlots),
		overflow: list.New(),
		start:    time.Now(),
		stop:     make(chan struct{}),
	}
	for i := range w.slots {
		w.slots[i] = list.New()
	}
	return w
}

// Run advances the wheel once per tick until Stop is called; callers start
// it in its own goroutine.
func (w *Wheel) Run() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.advance()
		case <-w.stop:
			return
		}
	}
}

// Stop halts Run.
func (w *Wheel) Stop() { close(w.stop) }

func (w *Wheel) slotFor(d time.Duration) (slot int, overflow bool) {
	ticks := int((d + w.tick - 1) / w.tick)
	if ticks < 1 {
		ticks = 1
	}
	if ticks >= len(w.slots) {
		return 0, true
	}
	return (w.cur + ticks) % len(w.slots), false
}

// Schedule runs cb once d has elapsed, to within one tick.
func (w *Wheel) Schedule(d time.Duration, cb Callback) *Handle {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := &entry{deadline: time.Now().Add(d), cb: cb}
	slot, overflow := w.slotFor(d)
	if overflow {
		e.inOverflow = true
		e.elem = w.overflow.PushBack(e)
	} else {
		e.slot = slot
		e.elem = w.slots[slot].PushBack(e)
	}
	return &Handle{e: e, w: w}
}

func (w *Wheel) advance() {
	w.mu.Lock()
	w.cur = (w.cur + 1) % len(w.slots)
	bucket := w.slots[w.cur]
	fired := make([]*entry, 0, bucket.Len())
	for el := bucket.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry)
		if !e.cancelled {
			fired = append(fired, e)
		}
		bucket.Remove(el)
		el = next
	}

	if w.cur == 0 {
		now := time.Now()
		for el := w.overflow.Front(); el != nil; {
			next := el.Next()
			e := el.Value.(*entry)
			remaining := e.deadline.Sub(now)
			slot, overflow := w.slotFor(remaining)
			w.overflow.Remove(el)
			if !overflow {
				e.slot = slot
				e.inOverflow = false
				e.elem = w.slots[slot].PushBack(e)
			} else {
				e.elem = w.overflow.PushBack(e)
			}
			el = next
		}
	}
	w.mu.Unlock()

	for _, e := range fired {
		e.cb()
	}
}
