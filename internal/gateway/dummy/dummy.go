// Package dummy is an in-process gateway for development and demos. No network is involved.
//
// Cards whose number ends in an even digit are approved, odd ones are declined.
// With the "offsite" setting, authorize and purchase send the customer to returnUrl first.
package dummy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/shestoi/paygate/internal/gateway"
)

// Name is the canonical name the adapter registers under.
const Name = "Dummy"

// ErrInvalidRequest is returned for calls missing a required parameter.
var ErrInvalidRequest = errors.New("dummy: invalid request")

type Gateway struct {
	settings gateway.Params
}

func New() gateway.Gateway {
	return &Gateway{settings: gateway.Params{}}
}

// Register adds the adapter to r.
func Register(r *gateway.Registry) {
	r.Register(Name, New)
}

func (g *Gateway) Name() string { return Name }

func (g *Gateway) Initialize(settings gateway.Params) {
	g.settings = settings.Clone()
}

func (g *Gateway) Parameters() gateway.Params {
	return g.settings.Clone()
}

func (g *Gateway) Supports(op gateway.Operation) bool {
	switch op {
	case gateway.OpAuthorize, gateway.OpCompleteAuthorize, gateway.OpCapture,
		gateway.OpPurchase, gateway.OpCompletePurchase,
		gateway.OpCreateCard, gateway.OpUpdateCard, gateway.OpDeleteCard:
		return true
	}
	return false
}

func (g *Gateway) Send(ctx context.Context, op gateway.Operation, params gateway.Params) (gateway.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch op {
	case gateway.OpAuthorize, gateway.OpPurchase:
		if str(params, "amount") == "" {
			return nil, fmt.Errorf("%w: amount is required", ErrInvalidRequest)
		}
		number, err := cardNumber(params)
		if err != nil {
			return nil, err
		}
		if !approved(number) {
			return declined(params), nil
		}
		if truthy(g.settings["offsite"]) {
			return g.offsite(params)
		}
		return approve(params, uuid.NewString()), nil

	case gateway.OpCompleteAuthorize, gateway.OpCompletePurchase:
		ref := str(params, "transactionReference")
		if ref == "" {
			ref = uuid.NewString()
		}
		return approve(params, ref), nil

	case gateway.OpCapture:
		ref := str(params, "transactionReference")
		if ref == "" {
			return nil, fmt.Errorf("%w: transactionReference is required", ErrInvalidRequest)
		}
		return approve(params, ref), nil

	case gateway.OpCreateCard:
		number, err := cardNumber(params)
		if err != nil {
			return nil, err
		}
		if !approved(number) {
			return declined(params), nil
		}
		resp := approve(params, uuid.NewString())
		resp.Payload["cardReference"] = uuid.NewString()
		return resp, nil

	case gateway.OpUpdateCard, gateway.OpDeleteCard:
		ref := str(params, "cardReference")
		if ref == "" {
			return nil, fmt.Errorf("%w: cardReference is required", ErrInvalidRequest)
		}
		resp := approve(params, uuid.NewString())
		resp.Payload["cardReference"] = ref
		return resp, nil
	}

	return nil, fmt.Errorf("%w: unsupported operation %s", ErrInvalidRequest, op)
}

func (g *Gateway) offsite(params gateway.Params) (gateway.Response, error) {
	returnURL := str(params, "returnUrl")
	if returnURL == "" {
		return nil, fmt.Errorf("%w: returnUrl is required for offsite flows", ErrInvalidRequest)
	}
	target, err := url.Parse(returnURL)
	if err != nil {
		return nil, fmt.Errorf("%w: returnUrl: %v", ErrInvalidRequest, err)
	}

	ref := uuid.NewString()
	q := target.Query()
	q.Set("transactionReference", ref)
	target.RawQuery = q.Encode()

	return gateway.StaticResponse{
		Redirect:  true,
		Msg:       "Redirecting to gateway",
		Reference: ref,
		Payload:   payload(params, ref, "redirect"),
		URL:       target.String(),
		Method:    "GET",
	}, nil
}

func approve(params gateway.Params, ref string) gateway.StaticResponse {
	return gateway.StaticResponse{
		Successful: true,
		Msg:        "Success",
		Reference:  ref,
		Payload:    payload(params, ref, "success"),
	}
}

func declined(params gateway.Params) gateway.StaticResponse {
	return gateway.StaticResponse{
		Msg:     "Failure",
		Payload: payload(params, "", "failure"),
	}
}

func payload(params gateway.Params, ref, result string) map[string]any {
	return map[string]any{
		"result":               result,
		"transactionId":        str(params, "transactionId"),
		"transactionReference": ref,
		"amount":               str(params, "amount"),
		"currency":             str(params, "currency"),
	}
}

// cardNumber extracts card.number and checks it is a plausible PAN.
func cardNumber(params gateway.Params) (string, error) {
	card, ok := params["card"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: card is required", ErrInvalidRequest)
	}
	number, _ := card["number"].(string)
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 12 {
		return "", fmt.Errorf("%w: card number is invalid", ErrInvalidRequest)
	}
	return number, nil
}

func approved(number string) bool {
	last := number[len(number)-1]
	return last >= '0' && last <= '9' && (last-'0')%2 == 0
}

func str(params gateway.Params, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "1" || strings.EqualFold(b, "true")
	}
	return false
}
