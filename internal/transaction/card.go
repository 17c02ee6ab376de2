package transaction

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Card is the card-present field set submitted with a payment form.
type Card struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Number      string `json:"number,omitempty" validate:"required,numeric,min=12,max=19"`
	ExpiryMonth int    `json:"expiryMonth,omitempty" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiryYear,omitempty" validate:"required,min=1000,max=9999"`
	StartMonth  int    `json:"startMonth,omitempty" validate:"omitempty,min=1,max=12"`
	StartYear   int    `json:"startYear,omitempty" validate:"omitempty,min=1000,max=9999"`
	CVV         string `json:"cvv,omitempty" validate:"omitempty,numeric,min=3,max=4"`
	IssueNumber string `json:"issueNumber,omitempty"`

	BillingAddress1 string `json:"billingAddress1,omitempty"`
	BillingAddress2 string `json:"billingAddress2,omitempty"`
	BillingCity     string `json:"billingCity,omitempty"`
	BillingPostcode string `json:"billingPostcode,omitempty"`
	BillingState    string `json:"billingState,omitempty"`
	BillingCountry  string `json:"billingCountry,omitempty"`
	BillingPhone    string `json:"billingPhone,omitempty"`

	ShippingAddress1 string `json:"shippingAddress1,omitempty"`
	ShippingAddress2 string `json:"shippingAddress2,omitempty"`
	ShippingCity     string `json:"shippingCity,omitempty"`
	ShippingPostcode string `json:"shippingPostcode,omitempty"`
	ShippingState    string `json:"shippingState,omitempty"`
	ShippingCountry  string `json:"shippingCountry,omitempty"`
	ShippingPhone    string `json:"shippingPhone,omitempty"`

	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
}

// Validate checks the field formats and that the card has not expired at now.
// A card is valid through the last instant of its expiry month.
func (c Card) Validate(now time.Time) error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: card: %v", ErrInvalid, err)
	}
	if now.After(c.ExpiresAt(now.Location())) {
		return fmt.Errorf("%w: card expired %02d/%04d", ErrInvalid, c.ExpiryMonth, c.ExpiryYear)
	}
	return nil
}

// ExpiresAt returns the last instant of the expiry month in loc.
func (c Card) ExpiresAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	firstNext := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond)
}

// WithoutCVV returns a copy safe to keep in the session.
func (c Card) WithoutCVV() Card {
	c.CVV = ""
	return c
}

// Parameters returns the set fields keyed by gateway parameter name.
func (c Card) Parameters() map[string]any {
	m := map[string]any{}
	put := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	putInt := func(key string, value int) {
		if value != 0 {
			m[key] = value
		}
	}

	put("firstName", c.FirstName)
	put("lastName", c.LastName)
	put("number", c.Number)
	putInt("expiryMonth", c.ExpiryMonth)
	putInt("expiryYear", c.ExpiryYear)
	putInt("startMonth", c.StartMonth)
	putInt("startYear", c.StartYear)
	put("cvv", c.CVV)
	put("issueNumber", c.IssueNumber)
	put("billingAddress1", c.BillingAddress1)
	put("billingAddress2", c.BillingAddress2)
	put("billingCity", c.BillingCity)
	put("billingPostcode", c.BillingPostcode)
	put("billingState", c.BillingState)
	put("billingCountry", c.BillingCountry)
	put("billingPhone", c.BillingPhone)
	put("shippingAddress1", c.ShippingAddress1)
	put("shippingAddress2", c.ShippingAddress2)
	put("shippingCity", c.ShippingCity)
	put("shippingPostcode", c.ShippingPostcode)
	put("shippingState", c.ShippingState)
	put("shippingCountry", c.ShippingCountry)
	put("shippingPhone", c.ShippingPhone)
	put("company", c.Company)
	put("email", c.Email)
	return m
}

// CardFromMap builds a Card from submitted fields. Numbers may arrive as strings or JSON numbers.
func CardFromMap(m map[string]any) Card {
	s := func(key string) string { return stringOf(m[key]) }
	n := func(key string) int {
		switch v := m[key].(type) {
		case int:
			return v
		case float64:
			return int(v)
		case string:
			i, _ := strconv.Atoi(strings.TrimSpace(v))
			return i
		}
		return 0
	}

	return Card{
		FirstName:        s("firstName"),
		LastName:         s("lastName"),
		Number:           strings.ReplaceAll(s("number"), " ", ""),
		ExpiryMonth:      n("expiryMonth"),
		ExpiryYear:       n("expiryYear"),
		StartMonth:       n("startMonth"),
		StartYear:        n("startYear"),
		CVV:              s("cvv"),
		IssueNumber:      s("issueNumber"),
		BillingAddress1:  s("billingAddress1"),
		BillingAddress2:  s("billingAddress2"),
		BillingCity:      s("billingCity"),
		BillingPostcode:  s("billingPostcode"),
		BillingState:     s("billingState"),
		BillingCountry:   s("billingCountry"),
		BillingPhone:     s("billingPhone"),
		ShippingAddress1: s("shippingAddress1"),
		ShippingAddress2: s("shippingAddress2"),
		ShippingCity:     s("shippingCity"),
		ShippingPostcode: s("shippingPostcode"),
		ShippingState:    s("shippingState"),
		ShippingCountry:  s("shippingCountry"),
		ShippingPhone:    s("shippingPhone"),
		Company:          s("company"),
		Email:            s("email"),
	}
}
