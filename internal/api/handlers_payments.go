// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/coursepay/internal/database"
	"github.com/tomtom215/coursepay/internal/gateway"
	"github.com/tomtom215/coursepay/internal/logging"
	"github.com/tomtom215/coursepay/internal/metrics"
	"github.com/tomtom215/coursepay/internal/settlement"
)

// Webhook receives the gateway's server-to-server settlement notification
// (IPN) by GET query or POST form.
//
// The response is always HTTP 200 with the gateway acknowledgement body.
// Internal causes are logged and never echoed.
//
// @Summary Gateway settlement notification
// @Description Signed IPN from the payment gateway. Always answers 200 with {RspCode, Message}.
// @Tags Payments
// @Accept x-www-form-urlencoded
// @Produce json
// @Success 200 {object} settlement.Ack
// @Router /payments/webhook [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Unreadable gateway notification")
		writeAck(w, settlement.OutcomeInternalError.Ack())
		return
	}
	if ev := logging.Ctx(r.Context()).Debug(); ev.Enabled() {
		ev.Dict("params", logging.ParamsDict(r.Form)).Msg("Gateway notification received")
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.webhookTimeout())
	defer cancel()

	// Buffered so a late Reconcile never blocks after the handler returned.
	done := make(chan settlement.Result, 1)
	go func() {
		done <- h.settlement.Reconcile(ctx, r.Form)
	}()

	select {
	case res := <-done:
		writeAck(w, res.Outcome.Ack())
	case <-ctx.Done():
		logging.Ctx(r.Context()).Error().
			Err(ctx.Err()).
			Str("gateway_ref", logging.SanitizeValue(r.Form.Get(gateway.ParamTxnRef))).
			Dur("timeout", h.webhookTimeout()).
			Msg("Settlement timed out; gateway will redeliver")
		writeAck(w, settlement.OutcomeInternalError.Ack())
	}
}

func writeAck(w http.ResponseWriter, ack settlement.Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		data = []byte(`{"RspCode":"99","Message":"Unknown error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write gateway acknowledgement")
	}
}

// Return handles the payer's browser coming back from the hosted page. It
// verifies the signature for display purposes only and redirects to the
// frontend result page. It never settles or mutates an order; settlement
// belongs to the webhook alone.
//
// @Summary Payer return from the hosted page
// @Description Verifies the signature for display only and redirects to the frontend result page.
// @Tags Payments
// @Success 302 "Redirect to the frontend result page"
// @Router /payments/return [get]
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	ctx := r.Context()

	verification := h.adapter.VerifySignature(params)
	if !verification.Valid {
		metrics.RecordSignatureFailure(verification.Reason)
		logging.Ctx(ctx).Warn().
			Str("reason", verification.Reason).
			Str("gateway_ref", logging.SanitizeValue(params.Get(gateway.ParamTxnRef))).
			Msg("Return parameters failed verification")
	}

	out := url.Values{}
	out.Set("orderRef", params.Get(gateway.ParamTxnRef))
	out.Set("responseCode", params.Get(gateway.ParamResponseCode))
	out.Set("transactionNo", params.Get(gateway.ParamTransactionNo))
	out.Set("bankCode", params.Get(gateway.ParamBankCode))
	out.Set("verified", strconv.FormatBool(verification.Valid))

	success := false
	if event, err := gateway.ParseEvent(params); err == nil {
		out.Set("amount", strconv.FormatFloat(event.Amount(), 'f', -1, 64))
		success = verification.Valid && event.ResponseCode == gateway.ResponseCodeSuccess

		if verification.Valid {
			order, err := h.orders.GetOrderByReference(ctx, event.GatewayRef)
			switch {
			case err == nil:
				out.Set("productId", order.ProductID)
			case errors.Is(err, database.ErrOrderNotFound):
				logging.Ctx(ctx).Warn().Str("gateway_ref", event.GatewayRef).Msg("Return for unknown order")
			default:
				logging.Ctx(ctx).Error().Err(err).Str("gateway_ref", event.GatewayRef).Msg("Order lookup failed on return")
			}
		}
	}
	out.Set("success", strconv.FormatBool(success))

	http.Redirect(w, r, h.resultURL(out), http.StatusFound)
}

func (h *Handler) resultURL(q url.Values) string {
	target, err := url.Parse(h.cfg.Gateway.FrontendResultURL)
	if err != nil {
		return "/?" + q.Encode()
	}
	merged := target.Query()
	for k, v := range q {
		merged[k] = v
	}
	target.RawQuery = merged.Encode()
	return target.String()
}
