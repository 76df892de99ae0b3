package gateway

// KeyValidation is the response body of GET /api/key/validate.
type KeyValidation struct {
	AppID          string `json:"app_id"`
	TrackRetention bool   `json:"track_retention"`
}

// CodeValidation is the response body of POST /api/code/validate.
//
// AffiliateCodeID may be absent: older gateway responses carry only the
// campaign id.
type CodeValidation struct {
	ProgramID string `json:"campaign_id"`
	CodeID    string `json:"affiliate_code_id"`
}

// codeValidationRequest is the request body of POST /api/code/validate.
type codeValidationRequest struct {
	Code string `json:"code"`
}

// ConversionUser carries the identity fields sent with a registration.
// AutoGeneratedExternalUserID lets the backend merge a synthetic identity
// into the real one.
type ConversionUser struct {
	ExternalUserID              string `json:"external_user_id"`
	Name                        string `json:"name,omitempty"`
	Email                       string `json:"email,omitempty"`
	Phone                       string `json:"phone,omitempty"`
	AutoGeneratedExternalUserID string `json:"auto_generated_external_user_id,omitempty"`
}

// AppOpenRequest is the request body of POST /appopen.
type AppOpenRequest struct {
	CodeID                      string `json:"affiliate_code_id"`
	ExternalUserID              string `json:"external_user_id,omitempty"`
	AutoGeneratedExternalUserID string `json:"auto_generated_external_user_id,omitempty"`
}

// RegistrationRequest is the request body of POST /newuser.
type RegistrationRequest struct {
	Code           string         `json:"code"`
	Platform       string         `json:"platform"`
	ConversionUser ConversionUser `json:"conversion_user"`
	CodeID         string         `json:"affiliate_code_id,omitempty"`
}

// PurchaseRequest is the request body of POST /iappurchase.
// Exactly one of ExternalUserID and AutoGeneratedExternalUserID is set.
type PurchaseRequest struct {
	ProductID                   string `json:"product_id"`
	TransactionID               string `json:"transaction_id"`
	Code                        string `json:"code"`
	Platform                    string `json:"platform"`
	CodeID                      string `json:"affiliate_code_id,omitempty"`
	ExternalUserID              string `json:"external_user_id,omitempty"`
	AutoGeneratedExternalUserID string `json:"auto_generated_external_user_id,omitempty"`
}
