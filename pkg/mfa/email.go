package mfa

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/tendant/simple-mfa/pkg/errors"
)

const (
	EMAIL_CODE_LENGTH           = 6
	DefaultEmailCodeLifetime    = 2 * time.Minute
	DefaultEmailMessageTemplate = "Your verification code: ${code}"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// EmailProvider implements the email code strategy. Issuance and verification
// mirror the SMS provider; only the destination and its validation differ.
type EmailProvider struct {
	sender     CodeSender
	codeLength int
}

// NewEmailProvider creates an email provider delivering codes via the given
// sender.
func NewEmailProvider(sender CodeSender) *EmailProvider {
	return &EmailProvider{
		sender:     sender,
		codeLength: EMAIL_CODE_LENGTH,
	}
}

func (p *EmailProvider) Type() ProviderType {
	return ProviderTypeEmail
}

// BuildTemplate returns a config shell carrying over the email address from
// the existing config when present.
func (p *EmailProvider) BuildTemplate(cfg ProviderConfig, accountName string, existing *AccountConfig) (AccountConfig, error) {
	template := AccountConfig{ProviderType: ProviderTypeEmail}
	if existing != nil && existing.ProviderType == ProviderTypeEmail {
		template.Email = existing.Email
	}
	return template, nil
}

// IssueCode generates a random numeric code with the configured lifetime.
func (p *EmailProvider) IssueCode(cfg ProviderConfig, draft AccountConfig, now time.Time) (CodeIssuance, error) {
	code, err := generateNumericCode(p.codeLength)
	if err != nil {
		slog.Error("Failed to generate email verification code", "error", err)
		return CodeIssuance{}, err
	}

	lifetime := DefaultEmailCodeLifetime
	if cfg.CodeLifetimeSeconds > 0 {
		lifetime = time.Duration(cfg.CodeLifetimeSeconds) * time.Second
	}

	return CodeIssuance{
		Code:             code,
		ExpiresAt:        now.Add(lifetime),
		RequiresDelivery: true,
	}, nil
}

// DeliverCode renders the message template and sends it to the draft's email
// address.
func (p *EmailProvider) DeliverCode(ctx context.Context, cfg ProviderConfig, draft AccountConfig, code string) error {
	template := cfg.MessageTemplate
	if template == "" {
		template = DefaultEmailMessageTemplate
	}
	message := strings.ReplaceAll(template, "${code}", code)

	if err := p.sender.SendCode(ctx, draft.Email, message); err != nil {
		slog.Error("Failed to deliver email verification code", "email", draft.Email, "error", err)
		return err
	}
	return nil
}

// VerifyCode compares the supplied code against the ledger's stored code in
// constant time.
func (p *EmailProvider) VerifyCode(cfg ProviderConfig, draft AccountConfig, suppliedCode string, pending PendingVerification, now time.Time) (bool, error) {
	if pending.Code == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(pending.Code), []byte(suppliedCode)) == 1, nil
}

// ValidateDraft checks the email address shape.
func (p *EmailProvider) ValidateDraft(draft AccountConfig) error {
	if draft.Email == "" {
		return errors.New(errors.ErrCodeInvalidAccountConfig, "email account config requires an email address")
	}
	if !emailPattern.MatchString(draft.Email) {
		return errors.Newf(errors.ErrCodeInvalidAccountConfig, "email address %s is not valid", draft.Email)
	}
	return nil
}
