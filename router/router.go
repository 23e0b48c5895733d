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

// Package router compiles path templates ("/users/{id:int}/posts/{slug}")
// into a prefix tree and matches incoming request paths against it. Segment
// percent-decoding happens strictly after the path is split on "/", so a
// literal segment containing an encoded slash never gets mistaken for two
// segments.
package router

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/larrymotalavigne/httpy/message"
)

// segKind orders how a template segment competes against siblings at the
// same tree depth: a literal always wins over a typed placeholder, int
// over str, and a path-typed catch-all is tried last of all.
type segKind uint8

const (
	kindLiteral segKind = iota
	kindInt
	kindStr
	kindPath
)

type segment struct {
	kind    segKind
	literal string
	name    string
}

func parseSegment(raw string) (segment, error) {
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return segment{kind: kindLiteral, literal: raw}, nil
	}
	inner := raw[1 : len(raw)-1]
	name, typ, hasType := strings.Cut(inner, ":")
	if name == "" {
		return segment{}, fmt.Errorf("router: empty placeholder name in %q", raw)
	}
	if !hasType || typ == "str" {
		return segment{kind: kindStr, name: name}, nil
	}
	switch typ {
	case "int":
		return segment{kind: kindInt, name: name}, nil
	case "path":
		return segment{kind: kindPath, name: name}, nil
	default:
		return segment{}, fmt.Errorf("router: unknown placeholder type %q in %q", typ, raw)
	}
}

func splitTemplate(template string) []string {
	trimmed := strings.Trim(template, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Handler answers a matched request. Match does not touch the request; the
// caller copies MatchResult.Params into req.PathParams before invoking the
// handler (server.buildHandler does this).
type Handler func(req *message.Request) *message.Response

type route struct {
	template string
	handler  Handler
}

type node struct {
	children map[string]*node // literal children, keyed by exact text
	intChild *node
	strChild *node
	intName  string
	strName  string

	pathChild *node // at most one; matches the rest of the path
	pathName  string

	methods map[string]*route
}

func newNode() *node {
	return &node{children: map[string]*node{}, methods: map[string]*route{}}
}

// RouteConflict is returned by Register when the same (method, template)
// pair is registered twice.
type RouteConflict struct {
	Method   string
	Template string
}

func (e *RouteConflict) Error() string {
	return fmt.Sprintf("router: route conflict for %s %s", e.Method, e.Template)
}

// Router is a method + path-template dispatch table built as a prefix tree.
type Router struct {
	root *node
}

func New() *Router {
	return &Router{root: newNode()}
}

// Register adds handler for method and template, returning a *RouteConflict
// if that exact (method, template) pair already has a handler.
func (r *Router) Register(method, template string, handler Handler) error {
	method = strings.ToUpper(method)
	segs, err := compile(template)
	if err != nil {
		return err
	}

	cur := r.root
	for i, seg := range segs {
		last := i == len(segs)-1
		switch seg.kind {
		case kindLiteral:
			child, ok := cur.children[seg.literal]
			if !ok {
				child = newNode()
				cur.children[seg.literal] = child
			}
			cur = child
		case kindInt:
			if cur.intChild == nil {
				cur.intChild = newNode()
				cur.intName = seg.name
			}
			cur = cur.intChild
		case kindStr:
			if cur.strChild == nil {
				cur.strChild = newNode()
				cur.strName = seg.name
			}
			cur = cur.strChild
		case kindPath:
			if !last {
				return fmt.Errorf("router: path-typed segment must be terminal in %q", template)
			}
			if cur.pathChild == nil {
				cur.pathChild = newNode()
				cur.pathName = seg.name
			}
			cur = cur.pathChild
		}
	}

	if _, exists := cur.methods[method]; exists {
		return &RouteConflict{Method: method, Template: template}
	}
	cur.methods[method] = &route{template: template, handler: handler}
	return nil
}

func compile(template string) ([]segment, error) {
	raw := splitTemplate(template)
	segs := make([]segment, 0, len(raw))
	for _, r := range raw {
		s, err := parseSegment(r)
		if err != nil {
			return nil, err
		}
		segs = append(segs, s)
	}
	for i, s := range segs {
		if s.kind == kindPath && i != len(segs)-1 {
			return nil, fmt.Errorf("router: path-typed segment must be the last segment in %q", template)
		}
	}
	return segs, nil
}

// MatchResult reports the outcome of Match.
type MatchResult struct {
	Handler  Handler
	Params   map[string]string
	Template string

	// NotFound is true when no template matched the path at all.
	NotFound bool

	// MethodNotAllowed is true when the path matched a template but not
	// for the requested method; Allow lists the methods that do match.
	MethodNotAllowed bool
	Allow            []string
}

// Match resolves method and path against the registered templates.
func (r *Router) Match(method, path string) MatchResult {
	method = strings.ToUpper(method)
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 1 && segs[0] == "" {
		segs = nil
	}

	params := map[string]string{}
	n, rest, ok := walk(r.root, segs, params)
	if !ok || n == nil {
		return MatchResult{NotFound: true}
	}
	_ = rest

	if rt, ok := n.methods[method]; ok {
		return MatchResult{Handler: rt.handler, Params: params, Template: rt.template}
	}
	if len(n.methods) == 0 {
		return MatchResult{NotFound: true}
	}
	allow := make([]string, 0, len(n.methods))
	for m := range n.methods {
		allow = append(allow, m)
	}
	return MatchResult{MethodNotAllowed: true, Allow: allow}
}

// walk descends the tree trying literal, then int, then str, then path, at
// each level, backtracking to a less-specific branch when a more-specific
// one leads to a dead end.
func walk(n *node, segs []string, params map[string]string) (*node, []string, bool) {
	if len(segs) == 0 {
		return n, nil, true
	}

	raw := segs[0]
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	remainder := segs[1:]

	if child, ok := n.children[decoded]; ok {
		if result, rest, ok := walk(child, remainder, params); ok {
			return result, rest, true
		}
	}

	if n.intChild != nil {
		if _, err := strconv.ParseInt(decoded, 10, 64); err == nil {
			saved, had := params[n.intName]
			params[n.intName] = decoded
			if result, rest, ok := walk(n.intChild, remainder, params); ok {
				return result, rest, true
			}
			if had {
				params[n.intName] = saved
			} else {
				delete(params, n.intName)
			}
		}
	}

	if n.strChild != nil {
		saved, had := params[n.strName]
		params[n.strName] = decoded
		if result, rest, ok := walk(n.strChild, remainder, params); ok {
			return result, rest, true
		}
		if had {
			params[n.strName] = saved
		} else {
			delete(params, n.strName)
		}
	}

	if n.pathChild != nil {
		tail := make([]string, len(segs))
		for i, s := range segs {
			d, err := url.PathUnescape(s)
			if err != nil {
				d = s
			}
			tail[i] = d
		}
		params[n.pathName] = strings.Join(tail, "/")
		return n.pathChild, nil, true
	}

	return nil, segs, false
}
