// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"html/template"
	"net/http"
	"net/url"

	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/logging"
)

// Response codes the mock page can produce.
const (
	mockCodeApproved = gateway.ResponseCodeSuccess
	mockCodeCanceled = "24"
)

var mockPageTemplate = template.Must(template.New("mock").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Mock payment gateway</title></head>
<body>
<h1>Mock payment gateway</h1>
<p>Development only. No money moves.</p>
<dl>
<dt>Order</dt><dd>{{.Ref}}</dd>
<dt>Amount (minor units)</dt><dd>{{.Amount}}</dd>
<dt>Description</dt><dd>{{.Info}}</dd>
</dl>
<form method="post">
<input type="hidden" name="payload" value="{{.Payload}}">
<button type="submit" name="result" value="{{.Approved}}">Approve</button>
<button type="submit" name="result" value="{{.Canceled}}">Cancel</button>
</form>
</body>
</html>
`))

// MockPaymentPage renders the development hosted page for a signed outbound
// parameter set.
func (h *Handler) MockPaymentPage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := mockPageTemplate.Execute(w, map[string]string{
		"Ref":      params.Get(gateway.ParamTxnRef),
		"Amount":   params.Get(gateway.ParamAmount),
		"Info":     params.Get(gateway.ParamOrderInfo),
		"Payload":  r.URL.RawQuery,
		"Approved": mockCodeApproved,
		"Canceled": mockCodeCanceled,
	})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to render mock gateway page")
	}
}

// MockPaymentComplete plays the gateway's part: it delivers the signed
// settlement event to the reconciler, as the IPN would, then sends the
// browser to the return URL with the same parameters.
func (h *Handler) MockPaymentComplete(w http.ResponseWriter, r *http.Request) {
	sim, ok := h.adapter.(gateway.Simulator)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable form", nil)
		return
	}
	outbound, err := url.ParseQuery(r.PostForm.Get("payload"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable payment parameters", nil)
		return
	}
	code := r.PostForm.Get("result")
	if code != mockCodeApproved && code != mockCodeCanceled {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Unknown result", nil)
		return
	}

	event, err := sim.Simulate(outbound, code)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "Payment parameters were not issued by this gateway", err)
		return
	}

	res := h.settlement.Reconcile(r.Context(), event)
	logging.Ctx(r.Context()).Info().
		Str("gateway_ref", res.GatewayRef).
		Str("outcome", string(res.Outcome)).
		Msg("Mock gateway delivered notification")

	target := outbound.Get(gateway.ParamReturnURL)
	if target == "" {
		target = "/api/v1/payments/return"
	}
	http.Redirect(w, r, target+"?"+event.Encode(), http.StatusFound)
}
