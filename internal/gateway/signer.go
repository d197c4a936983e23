// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"math"
	"net/url"
	"sort"
	"strings"
)

// Canonicalize renders params in the form that is signed: signature fields
// and empty values dropped, keys sorted, values query-escaped, pairs joined
// with '&'. Insertion order never affects the result.
func Canonicalize(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		if params.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

// signer computes hex HMAC digests over canonical parameter strings.
type signer struct {
	secret []byte
	newFn  func() hash.Hash
}

func newSHA512Signer(secret string) signer {
	return signer{secret: []byte(secret), newFn: sha512.New}
}

func newSHA256Signer(secret string) signer {
	return signer{secret: []byte(secret), newFn: sha256.New}
}

func (s signer) sign(data string) string {
	mac := hmac.New(s.newFn, s.secret)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s signer) signParams(params url.Values) string {
	return s.sign(Canonicalize(params))
}

// matches compares a received digest against the expected one in constant time.
// Hex case is not significant.
func (s signer) matches(params url.Values, received string) bool {
	want, err := hex.DecodeString(s.signParams(params))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.ToLower(received))
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}

// encodeSigned builds the final query string with the signature last.
func encodeSigned(params url.Values, signature string) string {
	return Canonicalize(params) + "&" + ParamSecureHash + "=" + signature
}

// ToMinorUnits converts a currency amount to integer minor units (x100).
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts integer minor units back to a currency amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
