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

// Package dispatch builds the outside-in middleware chain that wraps a
// route's terminal Handler, plus an exception-handler registry that maps a
// panic or returned error to a Response by walking from the most specific
// registered error type to the most general.
package dispatch

import (
	"reflect"

	"github.com/larrymotalavigne/httpy/message"
)

// Handler answers a single request with a response.
type Handler func(req *message.Request) *message.Response

// Middleware wraps a Handler, calling next to continue the chain or
// returning its own Response to short-circuit it without ever calling next.
type Middleware func(next Handler) Handler

// Chain composes middlewares outside-in around terminal: the first
// Middleware given runs first and wraps everything after it.
func Chain(terminal Handler, middlewares ...Middleware) Handler {
	h := terminal
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ExceptionHandler converts a recovered panic value or handler-returned
// error into a Response.
type ExceptionHandler func(req *message.Request, reason interface{}) *message.Response

// exceptionKey indexes a registered handler by the route template it
// applies to (empty string means "every route") crossed with the concrete
// exception type it handles (nil reflect.Type means "every type", i.e. a
// route's own fallback).
type exceptionKey struct {
	route   string
	errType reflect.Type
}

// ExceptionRegistry maps (route template, error/panic type) pairs to
// handlers. Resolve walks from most specific to least specific: exact route
// + exact type, exact route + any type, every route + exact type, every
// route + any type, the way a typed exception hierarchy scoped per
// controller would.
type ExceptionRegistry struct {
	handlers map[exceptionKey]ExceptionHandler
}

func NewExceptionRegistry() *ExceptionRegistry {
	return &ExceptionRegistry{handlers: map[exceptionKey]ExceptionHandler{}}
}

// Register binds handler to the concrete type of sample for route (the
// exact template string passed to Router.Register, or "" to match every
// route).
func (r *ExceptionRegistry) Register(route string, sample error, handler ExceptionHandler) {
	r.handlers[exceptionKey{route: route, errType: reflect.TypeOf(sample)}] = handler
}

// Fallback sets the catch-all handler for route ("" for every route), used
// when no type-specific registration matches.
func (r *ExceptionRegistry) Fallback(route string, handler ExceptionHandler) {
	r.handlers[exceptionKey{route: route}] = handler
}

// Resolve finds the handler for reason raised while serving route, trying
// error wrapping via errors.Unwrap-style type matching from the concrete
// type outward at each specificity level before dropping to the next one.
func (r *ExceptionRegistry) Resolve(route string, reason interface{}) ExceptionHandler {
	types := concreteTypes(reason)

	for _, t := range types {
		if h, ok := r.handlers[exceptionKey{route: route, errType: t}]; ok {
			return h
		}
	}
	if h, ok := r.handlers[exceptionKey{route: route}]; ok {
		return h
	}
	if route == "" {
		return nil
	}
	for _, t := range types {
		if h, ok := r.handlers[exceptionKey{errType: t}]; ok {
			return h
		}
	}
	if h, ok := r.handlers[exceptionKey{}]; ok {
		return h
	}
	return nil
}

// concreteTypes lists reason's type, and if it's an error, every type in
// its Unwrap chain from outermost to innermost.
func concreteTypes(reason interface{}) []reflect.Type {
	err, ok := reason.(error)
	if !ok {
		return []reflect.Type{reflect.TypeOf(reason)}
	}
	type unwrapper interface{ Unwrap() error }
	var types []reflect.Type
	for cur := err; cur != nil; {
		types = append(types, reflect.TypeOf(cur))
		u, ok := cur.(unwrapper)
		if !ok {
			break
		}
		cur = u.Unwrap()
	}
	return types
}

// Guard wraps handler so a panic anywhere in the chain is recovered and
// routed through registry instead of crashing the connection's goroutine.
// It resolves req.RouteTemplate against registry, so two routes can each
// register their own handler for the same exception type.
func Guard(registry *ExceptionRegistry, handler Handler) Handler {
	return func(req *message.Request) (resp *message.Response) {
		defer func() {
			if r := recover(); r != nil {
				h := registry.Resolve(req.RouteTemplate, r)
				if h == nil {
					resp = message.NewResponse(500)
					resp.Body = nil
					return
				}
				resp = h(req, r)
			}
		}()
		return handler(req)
	}
}

// NotFoundResponse and MethodNotAllowedResponse are the default terminal
// responses router.MatchResult's NotFound/MethodNotAllowed outcomes map to.
func NotFoundResponse() *message.Response {
	resp := message.NewResponse(404)
	return resp
}

func MethodNotAllowedResponse(allow []string) *message.Response {
	resp := message.NewResponse(405)
	for _, m := range allow {
		resp.Header.Add("Allow", m)
	}
	return resp
}
