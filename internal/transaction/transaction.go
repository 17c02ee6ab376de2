// Package transaction holds the in-flight parameter set of one payment operation.
package transaction

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is wrapped by every validation failure of a transaction or card.
var ErrInvalid = errors.New("invalid transaction")

var validate = newValidator()

// amountPattern is a non-negative decimal with at most two fraction digits.
var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		return amountPattern.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// Transaction is one payment action. It lives in the session between requests.
type Transaction struct {
	Amount               string `json:"amount,omitempty" validate:"omitempty,amount"`
	Currency             string `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Description          string `json:"description,omitempty"`
	TransactionID        string `json:"transactionId,omitempty"`
	TransactionReference string `json:"transactionReference,omitempty"`
	CardReference        string `json:"cardReference,omitempty"`
	ReturnURL            string `json:"returnUrl,omitempty" validate:"omitempty,url"`
	CancelURL            string `json:"cancelUrl,omitempty" validate:"omitempty,url"`
	NotifyURL            string `json:"notifyUrl,omitempty" validate:"omitempty,url"`
	FinalURL             string `json:"finalUrl,omitempty" validate:"omitempty,url"`
	Card                 *Card  `json:"card,omitempty"`
	Issuer               string `json:"issuer,omitempty"`
	ClientIP             string `json:"clientIp,omitempty"`
}

var properties = []string{
	"amount", "currency", "description", "transactionId", "transactionReference", "cardReference",
	"returnUrl", "cancelUrl", "notifyUrl", "finalUrl", "card", "issuer", "clientIp",
}

// Properties lists the parameter names a Transaction carries.
func Properties() []string {
	return append([]string(nil), properties...)
}

// Validate checks the format of the set fields. The card is checked separately.
func (t Transaction) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ToMap returns the set fields keyed by parameter name. Unset fields are left out.
func (t Transaction) ToMap() map[string]any {
	m := make(map[string]any, len(properties))
	put := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}

	put("amount", t.Amount)
	put("currency", t.Currency)
	put("description", t.Description)
	put("transactionId", t.TransactionID)
	put("transactionReference", t.TransactionReference)
	put("cardReference", t.CardReference)
	put("returnUrl", t.ReturnURL)
	put("cancelUrl", t.CancelURL)
	put("notifyUrl", t.NotifyURL)
	put("finalUrl", t.FinalURL)
	put("issuer", t.Issuer)
	put("clientIp", t.ClientIP)
	if t.Card != nil {
		m["card"] = t.Card.Parameters()
	}
	return m
}

// FromMap builds a Transaction from params. Unknown keys are ignored.
func FromMap(params map[string]any) Transaction {
	var t Transaction
	for key, value := range params {
		switch key {
		case "amount":
			t.Amount = amountString(value)
		case "currency":
			t.Currency = stringOf(value)
		case "description":
			t.Description = stringOf(value)
		case "transactionId":
			t.TransactionID = stringOf(value)
		case "transactionReference":
			t.TransactionReference = stringOf(value)
		case "cardReference":
			t.CardReference = stringOf(value)
		case "returnUrl":
			t.ReturnURL = stringOf(value)
		case "cancelUrl":
			t.CancelURL = stringOf(value)
		case "notifyUrl":
			t.NotifyURL = stringOf(value)
		case "finalUrl":
			t.FinalURL = stringOf(value)
		case "issuer":
			t.Issuer = stringOf(value)
		case "clientIp":
			t.ClientIP = stringOf(value)
		case "card":
			switch c := value.(type) {
			case *Card:
				t.Card = c
			case Card:
				t.Card = &c
			case map[string]any:
				card := CardFromMap(c)
				t.Card = &card
			}
		}
	}
	return t
}

// amountString pads numbers decoded from JSON to two decimals. Extra precision is kept
// so that validation rejects it instead of rounding.
func amountString(v any) string {
	switch a := v.(type) {
	case float64:
		s := strconv.FormatFloat(a, 'f', -1, 64)
		if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 > 2 {
			return s
		}
		return strconv.FormatFloat(a, 'f', 2, 64)
	case int:
		return strconv.Itoa(a) + ".00"
	}
	return stringOf(v)
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}
