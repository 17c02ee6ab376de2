package httpapi

import (
	"errors"
	"net/http"

	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/service"
	"github.com/shestoi/paygate/internal/transaction"
)

// statusFor maps a processor error to the HTTP status and the message shown to the client.
func statusFor(err error) (int, string) {
	var (
		unknownProvider *gateway.UnknownProviderError
		unsupported     *service.UnsupportedOperationError
		communication   *service.GatewayCommunicationError
		declined        *service.ProcessorError
		missing         *service.MissingPaymentError
		duplicate       *service.DuplicatePaymentError
	)

	switch {
	case errors.As(err, &unknownProvider):
		return http.StatusNotFound, unknownProvider.Error()
	case errors.Is(err, service.ErrUnknownMethod), errors.Is(err, service.ErrAuditTrailNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &unsupported):
		return http.StatusMethodNotAllowed, unsupported.Error()
	case errors.Is(err, transaction.ErrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCustomerRequired):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &communication):
		return http.StatusBadGateway, service.CommunicationFailureMessage
	case errors.As(err, &declined):
		return http.StatusPaymentRequired, declined.Message
	case errors.As(err, &missing):
		return http.StatusConflict, missing.Error()
	case errors.As(err, &duplicate):
		return http.StatusConflict, duplicate.Error()
	case errors.Is(err, gateway.ErrAdapterNotRegistered):
		return http.StatusNotImplemented, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
