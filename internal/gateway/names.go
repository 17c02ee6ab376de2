package gateway

import (
	"sort"
	"strings"
)

// canonicalNames maps lowercase gateway keys to the identifiers adapters register under.
var canonicalNames = map[string]string{
	"authorizenet_aim":         "AuthorizeNet_AIM",
	"authorizenet_dpm":         "AuthorizeNet_DPM",
	"authorizenet_sim":         "AuthorizeNet_SIM",
	"buckaroo_creditcard":      "Buckaroo_CreditCard",
	"buckaroo_ideal":           "Buckaroo_Ideal",
	"buckaroo_paypal":          "Buckaroo_PayPal",
	"cardsave":                 "CardSave",
	"coinbase":                 "Coinbase",
	"dummy":                    "Dummy",
	"eway_direct":              "Eway_Direct",
	"eway_rapid":               "Eway_Rapid",
	"eway_rapiddirect":         "Eway_RapidDirect",
	"eway_rapidshared":         "Eway_RapidShared",
	"firstdata_connect":        "FirstData_Connect",
	"firstdata_global":         "FirstData_Global",
	"firstdata_payeezy":        "FirstData_Payeezy",
	"firstdata_webservice":     "FirstData_Webservice",
	"gocardless":               "GoCardless",
	"migs_threeparty":          "Migs_ThreeParty",
	"migs_twoparty":            "Migs_TwoParty",
	"mollie":                   "Mollie",
	"multisafepay":             "MultiSafepay",
	"multisafepay_rest":        "MultiSafepay_Rest",
	"multisafepay_xml":         "MultiSafepay_Xml",
	"netaxept":                 "Netaxept",
	"netbanx":                  "NetBanx",
	"payfast":                  "PayFast",
	"payflow_pro":              "Payflow_Pro",
	"paymentexpress_pxpay":     "PaymentExpress_PxPay",
	"paymentexpress_pxpost":    "PaymentExpress_PxPost",
	"paypal_express":           "PayPal_Express",
	"paypal_pro":               "PayPal_Pro",
	"paypal_rest":              "PayPal_Rest",
	"pin":                      "Pin",
	"sagepay_direct":           "SagePay_Direct",
	"sagepay_server":           "SagePay_Server",
	"securepay_directpost":     "SecurePay_DirectPost",
	"stripe":                   "Stripe",
	"targetpay_directebanking": "TargetPay_Directebanking",
	"targetpay_ideal":          "TargetPay_Ideal",
	"targetpay_mrcash":         "TargetPay_Mrcash",
	"twocheckout":              "TwoCheckout",
	"worldpay":                 "WorldPay",
}

// ResolveName maps a user-facing key such as "paypal_express" to its canonical name "PayPal_Express".
func ResolveName(key string) (string, error) {
	key = strings.ToLower(key)
	name, ok := canonicalNames[key]
	if !ok {
		return "", &UnknownProviderError{Key: key}
	}
	return name, nil
}

// KnownNames lists every resolvable key.
func KnownNames() []string {
	keys := make([]string, 0, len(canonicalNames))
	for k := range canonicalNames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
