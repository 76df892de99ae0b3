package engine

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/text/unicode/norm"
)

// ReferralParam is the deep-link query parameter carrying a referral code.
const ReferralParam = "shinara_ref_code"

// HandleDeepLink inspects an incoming URL for a referral code and resolves
// it when present.
//
// When an API key is already set, the key is re-validated first as a
// defensive check, and that failure propagates. A URL without the referral
// parameter, or with an empty value, is a silent no-op.
func (e *Engine) HandleDeepLink(ctx context.Context, rawURL string) error {
	e.mu.Lock()
	apiKey := e.apiKey
	e.mu.Unlock()

	if apiKey != "" {
		if _, err := e.gw.ValidateKey(ctx, apiKey); err != nil {
			return wrapGatewayError(ErrCodeValidationFailed, "api key validation failed", err)
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse deep link: %w", err)
	}

	code := u.Query().Get(ReferralParam)
	if code == "" {
		return nil
	}

	// Codes arrive from arbitrary link sources; normalize to NFC so the
	// gateway sees one canonical spelling.
	code = norm.NFC.String(code)

	if _, err := e.ResolveReferralCode(ctx, code); err != nil {
		return err
	}
	return nil
}
