package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/paygate/internal/event"
	"github.com/shestoi/paygate/internal/gateway"
	"github.com/shestoi/paygate/internal/repository"
	"github.com/shestoi/paygate/internal/transaction"
	"github.com/shestoi/paygate/platform/observability"
)

// Outcome is the classification of a gateway response.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRedirect  Outcome = "redirect"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailure   Outcome = "failure"
)

// cardSessionType is the session slot of the last submitted card.
const cardSessionType = "card"

// sessionTypes maps an operation to its session slot.
var sessionTypes = map[gateway.Operation]string{
	gateway.OpAuthorize:  "authorize",
	gateway.OpCapture:    "capture",
	gateway.OpPurchase:   "purchase",
	gateway.OpCreateCard: "create",
	gateway.OpUpdateCard: "update",
	gateway.OpDeleteCard: "delete",
}

var completions = map[gateway.Operation]gateway.Operation{
	gateway.OpAuthorize: gateway.OpCompleteAuthorize,
	gateway.OpPurchase:  gateway.OpCompletePurchase,
}

func usesCard(op gateway.Operation) bool {
	switch op {
	case gateway.OpAuthorize, gateway.OpPurchase, gateway.OpCreateCard, gateway.OpUpdateCard:
		return true
	}
	return false
}

func requiresCard(op gateway.Operation) bool {
	return op == gateway.OpCreateCard || op == gateway.OpUpdateCard
}

// Request carries what the routing layer knows about the current HTTP request.
type Request struct {
	Gateway    string
	Gateways   Gateways
	Session    SessionFlusher
	URI        string
	ClientIP   string
	CustomerID string
	// Params are the submitted transaction fields, or the callback parameters on completion.
	Params     map[string]any
	Card       *transaction.Card
	Settings   gateway.Params
	Redirector Redirector
}

// Result is what a processor call hands back for rendering.
type Result struct {
	Method      gateway.Operation
	Outcome     Outcome
	Gateway     string
	Settings    gateway.Params
	Transaction transaction.Transaction
	Card        map[string]any
	Response    gateway.Response
}

// Processor drives the prepare, submit and complete steps of every payment operation.
type Processor struct {
	providers    gateway.ProviderResolver
	transactions *transaction.Manager
	records      PaymentRecords
	events       event.Sink
	metrics      Metrics
	logger       *zap.Logger
	callbackBase string
	now          func() time.Time
}

// NewProcessor creates a Processor. callbackBase is the absolute URL of the payments mountpoint,
// e.g. "https://shop.example/payments". events and metrics may be nil.
func NewProcessor(
	providers gateway.ProviderResolver,
	transactions *transaction.Manager,
	records PaymentRecords,
	events event.Sink,
	metrics Metrics,
	logger *zap.Logger,
	callbackBase string,
) *Processor {
	if events == nil {
		events = event.Discard
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Processor{
		providers:    providers,
		transactions: transactions,
		records:      records,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		callbackBase: strings.TrimRight(callbackBase, "/"),
		now:          time.Now,
	}
}

// CallbackURL is where an off-site gateway returns the customer for op.
func (p *Processor) CallbackURL(name string, op gateway.Operation) string {
	return p.callbackBase + "/" + strings.ToLower(name) + "/" + string(op)
}

// Prepare loads or creates the session transaction of method and stores it back.
func (p *Processor) Prepare(ctx context.Context, method gateway.Operation, req Request) (*Result, error) {
	typ, ok := sessionTypes[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	gw, err := req.Gateways.InitializeSessionGateway(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}

	tx, err := p.sessionTransaction(req, typ)
	if err != nil {
		return nil, err
	}

	var card map[string]any
	if usesCard(method) {
		var stored transaction.Card
		found, err := req.Gateways.GetSessionValue(req.Gateway, cardSessionType, &stored)
		if err != nil {
			return nil, fmt.Errorf("failed to read card from session: %w", err)
		}
		if found {
			tx.Card = &stored
			card = stored.Parameters()
		} else {
			tx.Card = nil
		}
	}

	if complete, ok := completions[method]; ok {
		tx.ReturnURL = p.CallbackURL(req.Gateway, complete)
		tx.CancelURL = req.URI
	}

	if err := req.Gateways.SetSessionValue(req.Gateway, typ, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction in session: %w", err)
	}

	return &Result{
		Method:      method,
		Gateway:     gw.Name(),
		Settings:    gw.Parameters(),
		Transaction: tx,
		Card:        card,
	}, nil
}

// Submit runs method on the gateway with the submitted transaction.
func (p *Processor) Submit(ctx context.Context, method gateway.Operation, req Request) (*Result, error) {
	typ, ok := sessionTypes[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	gw, err := req.Gateways.InitializeSessionGateway(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}
	if !gw.Supports(method) {
		return nil, &UnsupportedOperationError{Gateway: req.Gateway, Operation: method}
	}
	if method == gateway.OpPurchase && req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}

	tx, err := p.submittedTransaction(req, method, typ)
	if err != nil {
		return nil, err
	}
	if method == gateway.OpPurchase {
		if err := p.ensurePurchaseOpen(ctx, req, gw, tx); err != nil {
			return nil, err
		}
	}

	if err := p.storeSubmission(req, typ, tx); err != nil {
		return nil, err
	}

	resp, err := p.send(ctx, gw, method, req, tx, nil)
	if err != nil {
		return nil, err
	}

	outcome := classify(resp, false)
	_, completes := completions[method]
	switch {
	case outcome == OutcomeSuccess && completes:
		// Settled on-site. The next prepare starts a new transaction.
		if ref := resp.TransactionReference(); ref != "" {
			tx.TransactionReference = ref
		}
		p.clearSession(req, typ)
	case outcome == OutcomeSuccess || outcome == OutcomeRedirect:
		if ref := resp.TransactionReference(); ref != "" {
			tx.TransactionReference = ref
			if err := p.storeSubmission(req, typ, tx); err != nil {
				return nil, err
			}
		}
	}

	if method == gateway.OpPurchase {
		if err := p.recordPurchase(ctx, req, gw, tx, resp, outcome); err != nil {
			return nil, err
		}
	}

	return p.finish(ctx, method, method, req, gw, tx, resp, outcome)
}

// Complete handles the return of the customer from an off-site gateway for authorize or purchase.
func (p *Processor) Complete(ctx context.Context, method gateway.Operation, req Request) (*Result, error) {
	complete, ok := completions[method]
	if !ok {
		return nil, fmt.Errorf("%w: complete %s", ErrUnknownMethod, method)
	}
	typ := sessionTypes[method]

	gw, err := req.Gateways.InitializeSessionGateway(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}
	if !gw.Supports(complete) {
		return nil, &UnsupportedOperationError{Gateway: req.Gateway, Operation: complete}
	}
	if method == gateway.OpPurchase && req.CustomerID == "" {
		return nil, ErrCustomerRequired
	}

	// A lost session still completes, with a blank transaction.
	tx, err := p.sessionTransaction(req, typ)
	if err != nil {
		return nil, err
	}
	tx.ClientIP = req.ClientIP

	resp, err := p.send(ctx, gw, complete, req, tx, req.Params)
	if err != nil {
		return nil, err
	}

	outcome := classify(resp, true)
	if outcome == OutcomeSuccess {
		if ref := resp.TransactionReference(); ref != "" {
			tx.TransactionReference = ref
		}
	}

	if method == gateway.OpPurchase {
		if err := p.recordCompletion(ctx, req, gw, tx, resp, outcome); err != nil {
			return nil, err
		}
	}

	if outcome == OutcomeSuccess || outcome == OutcomeCancelled {
		p.clearSession(req, typ)
	}

	return p.finish(ctx, method, complete, req, gw, tx, resp, outcome)
}

// CreateTransaction seeds the session transaction of method from req.Params, replacing any
// transaction in progress. The flow returns the customer to req.URI when it ends.
func (p *Processor) CreateTransaction(ctx context.Context, method gateway.Operation, req Request) (*Result, error) {
	typ, ok := sessionTypes[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}

	gw, err := req.Gateways.InitializeSessionGateway(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}
	delete(params, "card")
	if method != gateway.OpCapture {
		delete(params, "transactionReference")
	}

	tx := p.transactions.CreateTransaction(params)
	if req.URI != "" {
		tx.FinalURL = req.URI
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := req.Gateways.SetSessionValue(req.Gateway, typ, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction in session: %w", err)
	}

	return &Result{
		Method:      method,
		Gateway:     gw.Name(),
		Settings:    gw.Parameters(),
		Transaction: tx,
	}, nil
}

// Settings returns the gateway settings of the session.
func (p *Processor) Settings(ctx context.Context, req Request) (*Result, error) {
	gw, err := req.Gateways.InitializeSessionGateway(ctx, req.Gateway)
	if err != nil {
		return nil, err
	}
	return &Result{Gateway: gw.Name(), Settings: gw.Parameters()}, nil
}

// SaveSettings initialises the gateway from req.Settings and keeps the result in the session.
func (p *Processor) SaveSettings(ctx context.Context, req Request) (*Result, error) {
	gw, err := req.Gateways.InitializeRequestGateway(ctx, req.Gateway, req.Settings)
	if err != nil {
		return nil, err
	}
	settings := gw.Parameters()
	if err := req.Gateways.SetSessionSettings(req.Gateway, settings); err != nil {
		return nil, fmt.Errorf("failed to store gateway settings in session: %w", err)
	}
	return &Result{Gateway: gw.Name(), Settings: settings}, nil
}

// Payments lists the payments of a customer.
func (p *Processor) Payments(ctx context.Context, customerID string) ([]repository.Payment, error) {
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	return p.records.Payments(ctx, customerID)
}

// AuditTrail lists the entries customerID owns in the audit trail of a transaction.
// A transaction without such entries is reported as ErrAuditTrailNotFound.
func (p *Processor) AuditTrail(ctx context.Context, customerID, transactionID string) ([]repository.PaymentAuditEntry, error) {
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	entries, err := p.records.AuditTrail(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	owned := make([]repository.PaymentAuditEntry, 0, len(entries))
	for _, e := range entries {
		if e.CustomerID == customerID {
			owned = append(owned, e)
		}
	}
	if len(owned) == 0 {
		return nil, ErrAuditTrailNotFound
	}
	return owned, nil
}

func (p *Processor) sessionTransaction(req Request, typ string) (transaction.Transaction, error) {
	var tx transaction.Transaction
	found, err := req.Gateways.GetSessionValue(req.Gateway, typ, &tx)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("failed to read transaction from session: %w", err)
	}
	if !found {
		tx = p.transactions.CreateTransaction(nil)
	}
	return tx, nil
}

// submittedTransaction builds the transaction of a submit. The prepared transactionId is kept,
// and so are the prepared callback URLs of redirect-capable methods.
func (p *Processor) submittedTransaction(req Request, method gateway.Operation, typ string) (transaction.Transaction, error) {
	if requiresCard(method) && req.Card == nil {
		return transaction.Transaction{}, fmt.Errorf("%w: card is required", transaction.ErrInvalid)
	}
	if req.Card != nil && usesCard(method) {
		if err := req.Card.Validate(p.now()); err != nil {
			return transaction.Transaction{}, err
		}
	}

	var prepared transaction.Transaction
	found, err := req.Gateways.GetSessionValue(req.Gateway, typ, &prepared)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("failed to read transaction from session: %w", err)
	}

	// Seeded fields are defaults for the submitted form.
	params := make(map[string]any, len(req.Params)+1)
	if found {
		for k, v := range prepared.ToMap() {
			params[k] = v
		}
		delete(params, "card")
		delete(params, "clientIp")
	}
	for k, v := range req.Params {
		params[k] = v
	}
	// The gateway reference comes from gateway responses. Capture is the exception: the form names
	// the authorization being captured.
	if method != gateway.OpCapture {
		delete(params, "transactionReference")
	}
	if found && prepared.TransactionID != "" {
		params["transactionId"] = prepared.TransactionID
	}

	tx := p.transactions.CreateTransaction(params)
	if err := tx.Validate(); err != nil {
		return transaction.Transaction{}, err
	}

	if complete, ok := completions[method]; ok {
		tx.ReturnURL = p.CallbackURL(req.Gateway, complete)
		tx.CancelURL = req.URI
		if found && prepared.CancelURL != "" {
			tx.CancelURL = prepared.CancelURL
		}
	}
	tx.ClientIP = req.ClientIP
	if usesCard(method) {
		tx.Card = req.Card
	}
	return tx, nil
}

// clearSession retires the transaction of typ together with the session card.
func (p *Processor) clearSession(req Request, typ string) {
	req.Gateways.RemoveSessionValue(req.Gateway, typ)
	req.Gateways.RemoveSessionValue(req.Gateway, cardSessionType)
}

// storeSubmission writes the transaction and card into the session without the CVV.
func (p *Processor) storeSubmission(req Request, typ string, tx transaction.Transaction) error {
	stored := tx
	if tx.Card != nil {
		card := tx.Card.WithoutCVV()
		stored.Card = &card
		if err := req.Gateways.SetSessionValue(req.Gateway, cardSessionType, card); err != nil {
			return fmt.Errorf("failed to store card in session: %w", err)
		}
	}
	if err := req.Gateways.SetSessionValue(req.Gateway, typ, stored); err != nil {
		return fmt.Errorf("failed to store transaction in session: %w", err)
	}
	return nil
}

// gatewayParameters overlays the set transaction fields on the provider settings of name.
func (p *Processor) gatewayParameters(name string, tx transaction.Transaction) (gateway.Params, error) {
	params, err := p.providers.Get(name)
	if err != nil {
		return nil, err
	}
	return params.Merge(tx.ToMap()), nil
}

func (p *Processor) send(
	ctx context.Context,
	gw gateway.Gateway,
	op gateway.Operation,
	req Request,
	tx transaction.Transaction,
	callback map[string]any,
) (gateway.Response, error) {
	params, err := p.gatewayParameters(req.Gateway, tx)
	if err != nil {
		return nil, err
	}
	// Callback parameters only fill gaps.
	for k, v := range callback {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}

	logger := observability.L(ctx, p.logger)
	p.events.Dispatch(ctx, p.event(event.StageInitiate, op, gw, req, tx, ""))

	start := time.Now()
	resp, err := gw.Send(ctx, op, params)
	p.metrics.ObserveGatewayCall(string(op), time.Since(start))
	if err != nil {
		logger.Error("gateway call failed",
			zap.String("gateway", gw.Name()),
			zap.String("method", string(op)),
			zap.String("transaction_id", tx.TransactionID),
			zap.Error(err),
		)
		return nil, newCommunicationError(err)
	}
	if resp == nil {
		return nil, newCommunicationError(errors.New("gateway returned no response"))
	}
	return resp, nil
}

// recordPurchase persists a submitted purchase and audits the branch taken.
func (p *Processor) recordPurchase(
	ctx context.Context,
	req Request,
	gw gateway.Gateway,
	tx transaction.Transaction,
	resp gateway.Response,
	outcome Outcome,
) error {
	description := "set purchase: " + string(outcome)
	if outcome == OutcomeSuccess || outcome == OutcomeRedirect {
		err := p.createPayment(ctx, repository.Payment{
			CustomerID:           req.CustomerID,
			Gateway:              gw.Name(),
			TransactionID:        tx.TransactionID,
			TransactionReference: tx.TransactionReference,
			Amount:               tx.Amount,
			Currency:             tx.Currency,
			Status:               repository.StatusNew,
			Description:          tx.Description,
		})
		var duplicate *DuplicatePaymentError
		if errors.As(err, &duplicate) {
			// The gateway already answered, so its data is kept in the trail.
			if auditErr := p.audit(ctx, req, tx, resp, description); auditErr != nil {
				return auditErr
			}
			return err
		}
		if err != nil {
			return err
		}
	}
	return p.audit(ctx, req, tx, resp, description)
}

// ensurePurchaseOpen refuses to charge a transaction id whose payment is already settled.
func (p *Processor) ensurePurchaseOpen(ctx context.Context, req Request, gw gateway.Gateway, tx transaction.Transaction) error {
	payment, err := p.records.Payment(ctx, req.CustomerID, gw.Name(), tx.TransactionID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if payment.Status != repository.StatusNew {
		return duplicatePayment(payment)
	}
	return nil
}

// createPayment inserts payment. An existing row for the same key is only replaced while it is
// still new, which happens when a customer abandons a redirect and submits again.
func (p *Processor) createPayment(ctx context.Context, payment repository.Payment) error {
	_, err := p.records.CreatePayment(ctx, payment)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrDuplicatePayment) {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	existing, err := p.records.Payment(ctx, payment.CustomerID, payment.Gateway, payment.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}
	if existing.Status != repository.StatusNew {
		return duplicatePayment(existing)
	}
	payment.ID = existing.ID
	if _, err := p.records.SavePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// recordCompletion moves the payment to its final status and audits the branch taken.
func (p *Processor) recordCompletion(
	ctx context.Context,
	req Request,
	gw gateway.Gateway,
	tx transaction.Transaction,
	resp gateway.Response,
	outcome Outcome,
) error {
	var status string
	switch outcome {
	case OutcomeSuccess:
		status = repository.StatusPaid
	case OutcomeCancelled:
		status = repository.StatusCancelled
	default:
		return p.audit(ctx, req, tx, resp, "complete purchase: "+string(outcome))
	}

	payment, err := p.records.Payment(ctx, req.CustomerID, gw.Name(), tx.TransactionID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		if err := p.audit(ctx, req, tx, resp, "complete purchase: missing payment"); err != nil {
			return err
		}
		return &MissingPaymentError{CustomerID: req.CustomerID, Gateway: gw.Name(), TransactionID: tx.TransactionID}
	}
	if err != nil {
		return fmt.Errorf("failed to get payment: %w", err)
	}

	payment.Status = status
	if tx.TransactionReference != "" {
		payment.TransactionReference = tx.TransactionReference
	}
	if _, err := p.records.SavePayment(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return p.audit(ctx, req, tx, resp, "complete purchase: "+string(outcome))
}

func (p *Processor) audit(ctx context.Context, req Request, tx transaction.Transaction, resp gateway.Response, description string) error {
	_, err := p.records.CreateAuditEntry(ctx, req.CustomerID, tx.TransactionID, tx.TransactionReference, description, resp.Data())
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// finish reports the outcome and performs the redirect. A redirect is issued only after the session is flushed.
func (p *Processor) finish(
	ctx context.Context,
	method, op gateway.Operation,
	req Request,
	gw gateway.Gateway,
	tx transaction.Transaction,
	resp gateway.Response,
	outcome Outcome,
) (*Result, error) {
	p.metrics.ObserveOutcome(string(op), string(outcome))
	observability.L(ctx, p.logger).Info("gateway response classified",
		zap.String("gateway", gw.Name()),
		zap.String("method", string(op)),
		zap.String("transaction_id", tx.TransactionID),
		zap.String("outcome", string(outcome)),
	)

	result := &Result{
		Method:      method,
		Outcome:     outcome,
		Gateway:     gw.Name(),
		Settings:    gw.Parameters(),
		Transaction: tx,
		Response:    resp,
	}
	if tx.Card != nil {
		result.Card = tx.Card.WithoutCVV().Parameters()
	}

	switch outcome {
	case OutcomeSuccess:
		p.events.Dispatch(ctx, p.event(event.StageSuccess, op, gw, req, tx, resp.Message()))
		return result, nil

	case OutcomeCancelled:
		p.events.Dispatch(ctx, p.event(event.StageCancel, op, gw, req, tx, resp.Message()))
		return result, nil

	case OutcomeRedirect:
		if req.Session != nil {
			if err := req.Session.Save(ctx); err != nil {
				return nil, fmt.Errorf("failed to flush session before redirect: %w", err)
			}
		}
		if req.Redirector != nil {
			if err := req.Redirector.Redirect(ctx, resp); err != nil {
				return nil, fmt.Errorf("failed to redirect: %w", err)
			}
		}
		return result, nil
	}

	p.events.Dispatch(ctx, p.event(event.StageFailure, op, gw, req, tx, resp.Message()))
	return nil, &ProcessorError{Message: resp.Message()}
}

func (p *Processor) event(stage event.Stage, op gateway.Operation, gw gateway.Gateway, req Request, tx transaction.Transaction, message string) event.Event {
	return event.Event{
		Name:                 event.Name(baseOperation(op), stage),
		Gateway:              gw.Name(),
		Method:               string(op),
		CustomerID:           req.CustomerID,
		TransactionID:        tx.TransactionID,
		TransactionReference: tx.TransactionReference,
		Amount:               tx.Amount,
		Currency:             tx.Currency,
		Message:              message,
	}
}

func baseOperation(op gateway.Operation) string {
	for base, complete := range completions {
		if complete == op {
			return string(base)
		}
	}
	return string(op)
}

// classify maps a response to exactly one outcome. Cancellation only counts on completion calls.
func classify(resp gateway.Response, completion bool) Outcome {
	switch {
	case resp.IsSuccessful():
		return OutcomeSuccess
	case resp.IsRedirect():
		return OutcomeRedirect
	case completion && resp.IsCancelled():
		return OutcomeCancelled
	}
	return OutcomeFailure
}
