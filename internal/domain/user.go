package domain

// User is the authenticated identity as asserted by the identity provider's
// token. Accounts are provisioned elsewhere.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	PhotoURL    *string `json:"photo_url,omitempty"`
}
