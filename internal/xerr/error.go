/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package xerr

import (
	"errors"
	"strings"
)

// Error is a CodeError-bearing error that may wrap one or more causes.
type Error interface {
	error
	Code() CodeError
	HasParent() bool
	AddParent(...error) Error
	Unwrap() error
}

type codeErr struct {
	code    CodeError
	msg     string
	parents []error
}

func (e *codeErr) Code() CodeError { return e.code }

func (e *codeErr) HasParent() bool { return len(e.parents) > 0 }

func (e *codeErr) AddParent(p ...error) Error {
	e.parents = append(e.parents, filterNil(p)...)
	return e
}

func (e *codeErr) Unwrap() error {
	if len(e.parents) == 0 {
		return nil
	}
	return e.parents[0]
}

func (e *codeErr) Error() string {
	if len(e.parents) == 0 {
		return e.msg
	}
	s := make([]string, 0, len(e.parents))
	for _, p := range e.parents {
		s = append(s, p.Error())
	}
	return e.msg + ": " + strings.Join(s, "; ")
}

// As reports whether err (or an error in its chain) is an Error, mirroring
// errors.As without requiring callers to know the concrete type.
func As(err error, target *Error) bool {
	var c *codeErr
	if errors.As(err, &c) {
		*target = c
		return true
	}
	return false
}
