// Copyright 2026 Palantir Technologies, Inc.
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

package httpmetrics

import (
	"context"
	"net/http"
	"sync"
)

// IgnoreRule selects what is skipped for an ignored request.
type IgnoreRule struct {
	Logs    bool
	Metrics bool
}

type ignoreKey struct{}

type ignoreState struct {
	mu   sync.Mutex
	rule IgnoreRule
}

// NewIgnoreHandler returns middleware that allows inner handlers to call
// Ignore. Handlers outside of this middleware see the rules set by inner
// handlers once the inner handler returns.
func NewIgnoreHandler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ignoreKey{}, &ignoreState{})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Ignore marks the request so that the parts selected by rule are skipped.
// Rules accumulate across calls. Ignore does nothing if the request did not
// pass through the middleware returned by NewIgnoreHandler.
func Ignore(r *http.Request, rule IgnoreRule) {
	if s, ok := r.Context().Value(ignoreKey{}).(*ignoreState); ok {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.rule.Logs = s.rule.Logs || rule.Logs
		s.rule.Metrics = s.rule.Metrics || rule.Metrics
	}
}

// IsIgnored returns true if any part selected by rule is ignored for the
// request.
func IsIgnored(r *http.Request, rule IgnoreRule) bool {
	s, ok := r.Context().Value(ignoreKey{}).(*ignoreState)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return (rule.Logs && s.rule.Logs) || (rule.Metrics && s.rule.Metrics)
}
