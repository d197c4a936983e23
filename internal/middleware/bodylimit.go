// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package middleware

import "net/http"

// DefaultMaxBodyBytes applies when no limit is configured.
const DefaultMaxBodyBytes int64 = 64 << 10

// MaxBodyBytes caps the request body at limit bytes.
func MaxBodyBytes(limit int64) func(http.HandlerFunc) http.HandlerFunc {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next(w, r)
		}
	}
}
