package shinara

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shinara/shinara-go/internal/engine"
	"github.com/shinara/shinara-go/internal/gateway"
	"github.com/shinara/shinara-go/internal/state"
)

// UserDetails carries the optional contact fields of a registration.
type UserDetails = engine.UserDetails

// SDK is the attribution client. All methods are safe for concurrent use;
// operations on shared state are serialized internally.
type SDK struct {
	store  *state.Store
	engine *engine.Engine
}

// New opens the attribution store and wires the SDK together. Close must
// be called when the SDK is no longer needed.
func New(ctx context.Context, opts Options) (*SDK, error) {
	opts = opts.withDefaults()

	store, err := state.Open(opts.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open attribution store: %w", err)
	}

	gw := gateway.New(opts.BaseURL, &http.Client{Timeout: opts.HTTPTimeout})

	eng, err := engine.New(ctx, store, gw, engine.WithLogger(opts.Logger))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &SDK{store: store, engine: eng}, nil
}

// Close releases the attribution store.
func (s *SDK) Close() error {
	return s.store.Close()
}

// Initialize stores the API key and validates it against the gateway.
// Every other operation requires a successful Initialize first.
func (s *SDK) Initialize(ctx context.Context, apiKey string) error {
	return s.engine.Initialize(ctx, apiKey)
}

// ResolveReferralCode validates a referral code and persists the referral
// relationship. Returns the program id the code belongs to.
func (s *SDK) ResolveReferralCode(ctx context.Context, code string) (string, error) {
	return s.engine.ResolveReferralCode(ctx, code)
}

// HandleDeepLink inspects an incoming URL for the shinara_ref_code query
// parameter and resolves it when present. A URL without the parameter is a
// no-op.
func (s *SDK) HandleDeepLink(ctx context.Context, rawURL string) error {
	return s.engine.HandleDeepLink(ctx, rawURL)
}

// RegisterUser registers a stable user id against the stored referral
// code. Registering an id that already succeeded is a no-op.
func (s *SDK) RegisterUser(ctx context.Context, userID string, details UserDetails) error {
	return s.engine.RegisterUser(ctx, userID, details)
}

// AttributePurchase reports a purchase for attribution. Without a stored
// referral code this is a no-op; duplicate transaction ids are deduplicated.
func (s *SDK) AttributePurchase(ctx context.Context, productID, transactionID string) error {
	return s.engine.AttributePurchase(ctx, productID, transactionID)
}

// ReferralCode returns the stored referral code, if any.
func (s *SDK) ReferralCode() (string, bool) {
	return s.engine.ReferralCode()
}

// ProgramID returns the program id of the stored referral code, if any.
func (s *SDK) ProgramID() (string, bool) {
	return s.engine.ProgramID()
}

// UserID returns the registered external user id, if any.
func (s *SDK) UserID() (string, bool) {
	return s.engine.UserID()
}
