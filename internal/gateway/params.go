// Coursepay - Course Payment Settlement and Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/coursepay

package gateway

// Gateway parameter vocabulary shared by the outbound payment URL, the
// webhook (IPN) and the browser return redirect.
const (
	ParamVersion           = "vnp_Version"
	ParamCommand           = "vnp_Command"
	ParamMerchantCode      = "vnp_TmnCode"
	ParamAmount            = "vnp_Amount"
	ParamCurrency          = "vnp_CurrCode"
	ParamTxnRef            = "vnp_TxnRef"
	ParamOrderInfo         = "vnp_OrderInfo"
	ParamOrderType         = "vnp_OrderType"
	ParamLocale            = "vnp_Locale"
	ParamReturnURL         = "vnp_ReturnUrl"
	ParamIPNURL            = "vnp_IpnUrl"
	ParamIPAddr            = "vnp_IpAddr"
	ParamCreateDate        = "vnp_CreateDate"
	ParamExpireDate        = "vnp_ExpireDate"
	ParamBankCode          = "vnp_BankCode"
	ParamBillEmail         = "vnp_Bill_Email"
	ParamBillFirstName     = "vnp_Bill_FirstName"
	ParamResponseCode      = "vnp_ResponseCode"
	ParamTransactionStatus = "vnp_TransactionStatus"
	ParamTransactionNo     = "vnp_TransactionNo"
	ParamBankTranNo        = "vnp_BankTranNo"
	ParamCardType          = "vnp_CardType"
	ParamPayDate           = "vnp_PayDate"
	ParamSecureHash        = "vnp_SecureHash"
	ParamSecureHashType    = "vnp_SecureHashType"
)

// ResponseCodeSuccess is the gateway's success sentinel for both
// vnp_ResponseCode and vnp_TransactionStatus.
const ResponseCodeSuccess = "00"

// TimestampLayout is the gateway's YYYYMMDDHHmmss format.
const TimestampLayout = "20060102150405"

// settlementRequired must be present on every inbound event.
var settlementRequired = []string{
	ParamTxnRef,
	ParamAmount,
	ParamResponseCode,
	ParamMerchantCode,
}
