// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package logging

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const maxLoggedValueLen = 200

// SanitizeValue neutralizes control characters and truncates untrusted input
// so that gateway-supplied strings cannot forge log lines.
func SanitizeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) > maxLoggedValueLen {
		out = out[:maxLoggedValueLen] + "..."
	}
	return out
}

// MaskSecret keeps the first and last four characters of long values.
// Example: "9f86d081884c7d65..." -> "9f86...0f00"
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 12 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// MaskEmail keeps the first two characters of the local part.
// Example: "jane.doe@example.com" -> "ja***@example.com"
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	if at <= 2 {
		return "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}

// ParamsDict renders a gateway parameter set as a zerolog dictionary with
// signatures and payer e-mail masked.
//
//	logging.Ctx(ctx).Debug().Dict("params", logging.ParamsDict(params)).Msg("Webhook received")
func ParamsDict(params url.Values) *zerolog.Event {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := zerolog.Dict()
	for _, k := range keys {
		v := params.Get(k)
		lk := strings.ToLower(k)
		switch {
		case strings.Contains(lk, "securehash") || strings.Contains(lk, "signature"):
			v = MaskSecret(v)
		case strings.Contains(lk, "email"):
			v = MaskEmail(v)
		default:
			v = SanitizeValue(v)
		}
		d = d.Str(SanitizeValue(k), v)
	}
	return d
}
