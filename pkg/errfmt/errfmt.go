// Copyright 2022 Palantir Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errfmt formats errors with stack traces for logging.
package errfmt

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type pkgStackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

type runtimeStackTracer interface {
	StackTrace() []runtime.Frame
}

// Print returns the error message followed by the deepest stack trace found
// in the error chain, if any. Each stack frame takes two lines: the function
// name, then the file and line number indented by a tab.
func Print(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(err.Error())

	var frames []string
	for e := err; e != nil; e = unwrap(e) {
		switch st := e.(type) {
		case pkgStackTracer:
			frames = frames[:0]
			for _, f := range st.StackTrace() {
				frames = append(frames, fmt.Sprintf("%+s:%d", f, f))
			}
		case runtimeStackTracer:
			frames = frames[:0]
			for _, f := range st.StackTrace() {
				frames = append(frames, fmt.Sprintf("%s\n\t%s:%d", f.Function, f.File, f.Line))
			}
		}
	}

	for _, f := range frames {
		b.WriteString("\n")
		b.WriteString(f)
	}
	return b.String()
}

func unwrap(err error) error {
	if u := errors.Unwrap(err); u != nil {
		return u
	}
	if c, ok := err.(interface{ Cause() error }); ok {
		if cause := c.Cause(); cause != err {
			return cause
		}
	}
	return nil
}
