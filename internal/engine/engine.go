package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/shinara/shinara-go/internal/gateway"
	"github.com/shinara/shinara-go/internal/state"
)

// UserDetails carries the optional contact fields of a registration.
// Empty fields are omitted from the wire payload.
type UserDetails struct {
	Name  string
	Email string
	Phone string
}

// inflightCall tracks one network operation in progress for a given
// registration or attribution key. Later callers for the same key wait on
// done and adopt err instead of issuing a second request.
type inflightCall struct {
	done chan struct{}
	err  error
}

// Engine is the serialized attribution state machine.
//
// Thread-safety model:
//   - every exported method is safe from any goroutine
//   - mu guards apiKey, snap, and inflight
//   - network calls run outside the lock; checks and commits inside it
type Engine struct {
	store  *state.Store
	gw     *gateway.Client
	idGen  UserIDGenerator
	logger *slog.Logger

	mu       sync.Mutex
	apiKey   string
	snap     state.Snapshot
	inflight map[string]*inflightCall

	// appOpen tracks detached app-open notifications so tests can wait
	// for them; production code never does.
	appOpen sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDGenerator replaces the auto-generated user id source.
// Tests use NewFixedGenerator for deterministic identities.
func WithIDGenerator(gen UserIDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.idGen = gen
		}
	}
}

// New creates an Engine bound to a store and a gateway client, loading the
// persisted attribution state into memory. Reads served by the accessors
// never touch the store afterwards; every confirmed mutation updates both.
func New(ctx context.Context, store *state.Store, gw *gateway.Client, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    store,
		gw:       gw,
		idGen:    UUIDGenerator{},
		logger:   slog.Default(),
		inflight: make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(e)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attribution state: %w", err)
	}
	e.snap = snap

	return e, nil
}

// Initialize stores the API key and validates it against the gateway.
//
// A failed validation leaves the stored key in place so a later retry can
// reuse it. When the validated key has retention tracking enabled, a
// detached app-open notification fires; its outcome never affects
// Initialize.
func (e *Engine) Initialize(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return errKeyNotSet()
	}

	e.mu.Lock()
	e.apiKey = apiKey
	e.mu.Unlock()

	resp, err := e.gw.ValidateKey(ctx, apiKey)
	if err != nil {
		return wrapGatewayError(ErrCodeValidationFailed, "api key validation failed", err)
	}

	if resp.TrackRetention {
		e.triggerAppOpen()
	}

	e.logger.Info("shinara sdk initialized", "app_id", resp.AppID)
	return nil
}

// ResolveReferralCode validates a referral code against the gateway and,
// on success, persists the referral fields atomically and returns the
// program id. On failure nothing is stored; a previously resolved referral
// stays untouched.
func (e *Engine) ResolveReferralCode(ctx context.Context, code string) (string, error) {
	e.mu.Lock()
	apiKey := e.apiKey
	e.mu.Unlock()
	if apiKey == "" {
		return "", errKeyNotSet()
	}

	resp, err := e.gw.ValidateCode(ctx, apiKey, code)
	if err != nil {
		return "", wrapGatewayError(ErrCodeValidationFailed, "referral code validation failed", err)
	}
	if resp.ProgramID == "" {
		return "", &Error{
			Code:    ErrCodeValidationFailed,
			Status:  http.StatusOK,
			Message: "referral code validation returned no campaign id",
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SetReferral(ctx, code, resp.ProgramID, resp.CodeID); err != nil {
		return "", fmt.Errorf("persist referral: %w", err)
	}
	e.snap.ReferralCode = code
	e.snap.ProgramID = resp.ProgramID
	e.snap.CodeID = resp.CodeID

	e.logger.Info("referral code resolved", "code", code, "program_id", resp.ProgramID)
	return resp.ProgramID, nil
}

// RegisterUser registers a user id against the stored referral code.
//
// An id that already registered succeeds immediately without a network
// call. A concurrent registration for the same id waits for the first
// call's outcome. On success the external user id replaces any synthetic
// identity.
func (e *Engine) RegisterUser(ctx context.Context, userID string, details UserDetails) error {
	e.mu.Lock()
	if e.apiKey == "" {
		e.mu.Unlock()
		return errKeyNotSet()
	}
	if e.snap.ReferralCode == "" {
		e.mu.Unlock()
		return errNoReferralCode()
	}
	if _, ok := e.snap.RegisteredUsers[userID]; ok {
		e.mu.Unlock()
		return nil
	}

	key := "register:" + userID
	if c, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		<-c.done
		return c.err
	}
	c := &inflightCall{done: make(chan struct{})}
	e.inflight[key] = c

	apiKey := e.apiKey
	req := gateway.RegistrationRequest{
		Code:     e.snap.ReferralCode,
		Platform: gateway.PlatformTag,
		ConversionUser: gateway.ConversionUser{
			ExternalUserID:              userID,
			Name:                        details.Name,
			Email:                       details.Email,
			Phone:                       details.Phone,
			AutoGeneratedExternalUserID: e.snap.AutoGenUserID,
		},
		CodeID: e.snap.CodeID,
	}
	e.mu.Unlock()

	err := e.gw.RegisterUser(ctx, apiKey, req)
	if err != nil {
		err = wrapGatewayError(ErrCodeRegistrationFailed, "user registration failed", err)
	}

	e.mu.Lock()
	if err == nil {
		if perr := e.store.RecordRegistration(ctx, userID); perr != nil {
			err = fmt.Errorf("persist registration: %w", perr)
		} else {
			e.snap.ExternalUserID = userID
			e.snap.AutoGenUserID = ""
			e.snap.RegisteredUsers[userID] = struct{}{}
			e.logger.Info("user registered", "user_id", userID)
		}
	}
	delete(e.inflight, key)
	c.err = err
	e.mu.Unlock()
	close(c.done)

	return err
}

// AttributePurchase reports a purchase transaction for attribution.
//
// Without a stored referral code the call is a silent no-op: purchases are
// only attributable inside a referral relationship, and its absence is an
// expected state. Already processed transaction ids are no-ops as well. A
// concurrent attribution for the same transaction id waits for the first
// call's outcome instead of issuing a duplicate request.
func (e *Engine) AttributePurchase(ctx context.Context, productID, transactionID string) error {
	e.mu.Lock()
	if e.apiKey == "" {
		e.mu.Unlock()
		return errKeyNotSet()
	}
	if e.snap.ReferralCode == "" {
		e.mu.Unlock()
		return nil
	}
	if _, ok := e.snap.ProcessedTransactions[transactionID]; ok {
		e.mu.Unlock()
		return nil
	}

	key := "purchase:" + transactionID
	if c, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		<-c.done
		return c.err
	}
	c := &inflightCall{done: make(chan struct{})}
	e.inflight[key] = c

	apiKey := e.apiKey
	req := gateway.PurchaseRequest{
		ProductID:     productID,
		TransactionID: transactionID,
		Code:          e.snap.ReferralCode,
		Platform:      gateway.PlatformTag,
		CodeID:        e.snap.CodeID,
	}
	var autoGenID string
	if e.snap.ExternalUserID != "" {
		req.ExternalUserID = e.snap.ExternalUserID
	} else {
		if e.snap.AutoGenUserID == "" {
			// Created once, reused by later attempts until a real
			// registration supersedes it.
			e.snap.AutoGenUserID = e.idGen.Generate()
		}
		autoGenID = e.snap.AutoGenUserID
		req.AutoGeneratedExternalUserID = autoGenID
	}
	e.mu.Unlock()

	err := e.gw.AttributePurchase(ctx, apiKey, req)
	if err != nil {
		err = wrapGatewayError(ErrCodeAttributionFailed, "purchase attribution failed", err)
	}

	e.mu.Lock()
	if err == nil {
		// Persist the synthetic identity only while it is still the
		// active one; a registration may have retired it mid-flight.
		if autoGenID != e.snap.AutoGenUserID {
			autoGenID = ""
		}
		if perr := e.store.RecordPurchase(ctx, transactionID, autoGenID); perr != nil {
			err = fmt.Errorf("persist purchase: %w", perr)
		} else {
			e.snap.ProcessedTransactions[transactionID] = struct{}{}
			e.logger.Info("purchase attributed", "product_id", productID, "transaction_id", transactionID)
		}
	}
	delete(e.inflight, key)
	c.err = err
	e.mu.Unlock()
	close(c.done)

	return err
}

// triggerAppOpen fires the detached app-open notification.
//
// Skipped entirely when no code id is stored: the gateway cannot attribute
// an app open without one. The goroutine uses a background context so the
// notification outlives the Initialize call that scheduled it.
func (e *Engine) triggerAppOpen() {
	e.mu.Lock()
	apiKey := e.apiKey
	req := gateway.AppOpenRequest{
		CodeID:                      e.snap.CodeID,
		ExternalUserID:              e.snap.ExternalUserID,
		AutoGeneratedExternalUserID: e.snap.AutoGenUserID,
	}
	e.mu.Unlock()

	if apiKey == "" || req.CodeID == "" {
		return
	}

	e.appOpen.Add(1)
	go func() {
		defer e.appOpen.Done()
		if err := e.gw.AppOpen(context.Background(), apiKey, req); err != nil {
			e.logger.Warn("app open notification failed", "error", err)
		}
	}()
}

// ReferralCode returns the stored referral code, if any.
func (e *Engine) ReferralCode() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.ReferralCode, e.snap.ReferralCode != ""
}

// ProgramID returns the stored program id, if any.
func (e *Engine) ProgramID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.ProgramID, e.snap.ProgramID != ""
}

// UserID returns the registered external user id, if any. The synthetic
// auto-generated id is never exposed here.
func (e *Engine) UserID() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap.ExternalUserID, e.snap.ExternalUserID != ""
}
