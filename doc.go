// Package shinara is the Go client SDK for Shinara referral attribution.
//
// The SDK validates an API key, resolves and persists referral codes,
// registers application users against a referral, and reports purchase
// events for attribution. State survives restarts through an embedded
// SQLite store; duplicate registrations and duplicate purchase reports are
// silently deduplicated.
//
// Typical use:
//
//	sdk, err := shinara.New(ctx, shinara.Options{StorePath: "shinara.db"})
//	if err != nil { ... }
//	defer sdk.Close()
//
//	if err := sdk.Initialize(ctx, apiKey); err != nil { ... }
//	programID, err := sdk.ResolveReferralCode(ctx, "TEST01")
//	err = sdk.RegisterUser(ctx, "user-1", shinara.UserDetails{Email: "u@example.com"})
//	err = sdk.AttributePurchase(ctx, "product-1", "txn-1")
//
// Platform purchase queues feed the SDK through a TransactionObserver,
// which attributes terminal transactions and acknowledges each exactly
// once.
package shinara
