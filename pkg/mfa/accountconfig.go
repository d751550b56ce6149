package mfa

// AccountConfig is a user's enrolled (or draft) 2FA method. The struct is
// polymorphic over ProviderType: TOTP configs carry Secret and AuthURL, SMS
// configs carry PhoneNumber, email configs carry Email. At most one
// AccountConfig exists per (tenant, user) pair; re-enrollment replaces it
// wholesale.
type AccountConfig struct {
	ProviderType ProviderType `json:"provider_type"`

	// TOTP fields
	Secret  string `json:"secret,omitempty"`
	AuthURL string `json:"auth_url,omitempty"`

	// SMS fields
	PhoneNumber string `json:"phone_number,omitempty"`

	// Email fields
	Email string `json:"email,omitempty"`
}

// Equal reports whether two account configs describe the same enrollment.
func (c AccountConfig) Equal(other AccountConfig) bool {
	return c.ProviderType == other.ProviderType &&
		c.Secret == other.Secret &&
		c.AuthURL == other.AuthURL &&
		c.PhoneNumber == other.PhoneNumber &&
		c.Email == other.Email
}
