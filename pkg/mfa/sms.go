package mfa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"log/slog"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/tendant/simple-mfa/pkg/errors"
)

const (
	SMS_CODE_LENGTH           = 6
	DefaultSmsCodeLifetime    = 2 * time.Minute
	DefaultSmsMessageTemplate = "Your verification code: ${code}"
)

// E.164 format, as required for SMS destinations.
var phoneNumberPattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// CodeSender is the out-of-band delivery channel for verification codes.
// Delivery failures are reported to the caller as non-fatal; the pending
// verification stays valid.
type CodeSender interface {
	SendCode(ctx context.Context, destination, message string) error
}

// SmsProvider implements the SMS code strategy: a random fixed-length numeric
// code is issued at submission time, delivered via the CodeSender, and
// compared in constant time at verification.
type SmsProvider struct {
	sender     CodeSender
	codeLength int
}

// NewSmsProvider creates an SMS provider delivering codes via the given
// sender.
func NewSmsProvider(sender CodeSender) *SmsProvider {
	return &SmsProvider{
		sender:     sender,
		codeLength: SMS_CODE_LENGTH,
	}
}

func (p *SmsProvider) Type() ProviderType {
	return ProviderTypeSMS
}

// BuildTemplate returns a config shell carrying over the phone number from
// the existing config when present.
func (p *SmsProvider) BuildTemplate(cfg ProviderConfig, accountName string, existing *AccountConfig) (AccountConfig, error) {
	template := AccountConfig{ProviderType: ProviderTypeSMS}
	if existing != nil && existing.ProviderType == ProviderTypeSMS {
		template.PhoneNumber = existing.PhoneNumber
	}
	return template, nil
}

// IssueCode generates a random numeric code with the configured lifetime.
func (p *SmsProvider) IssueCode(cfg ProviderConfig, draft AccountConfig, now time.Time) (CodeIssuance, error) {
	code, err := generateNumericCode(p.codeLength)
	if err != nil {
		slog.Error("Failed to generate SMS verification code", "error", err)
		return CodeIssuance{}, err
	}

	lifetime := DefaultSmsCodeLifetime
	if cfg.CodeLifetimeSeconds > 0 {
		lifetime = time.Duration(cfg.CodeLifetimeSeconds) * time.Second
	}

	return CodeIssuance{
		Code:             code,
		ExpiresAt:        now.Add(lifetime),
		RequiresDelivery: true,
	}, nil
}

// DeliverCode renders the message template and sends it to the draft's phone
// number.
func (p *SmsProvider) DeliverCode(ctx context.Context, cfg ProviderConfig, draft AccountConfig, code string) error {
	template := cfg.MessageTemplate
	if template == "" {
		template = DefaultSmsMessageTemplate
	}
	message := strings.ReplaceAll(template, "${code}", code)

	if err := p.sender.SendCode(ctx, draft.PhoneNumber, message); err != nil {
		slog.Error("Failed to deliver SMS verification code", "phoneNumber", draft.PhoneNumber, "error", err)
		return err
	}
	return nil
}

// VerifyCode compares the supplied code against the ledger's stored code in
// constant time. Expiry is enforced by the ledger before verification.
func (p *SmsProvider) VerifyCode(cfg ProviderConfig, draft AccountConfig, suppliedCode string, pending PendingVerification, now time.Time) (bool, error) {
	if pending.Code == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(pending.Code), []byte(suppliedCode)) == 1, nil
}

// ValidateDraft checks the phone number is in E.164 format.
func (p *SmsProvider) ValidateDraft(draft AccountConfig) error {
	if draft.PhoneNumber == "" {
		return errors.New(errors.ErrCodeInvalidAccountConfig, "SMS account config requires a phone number")
	}
	if !phoneNumberPattern.MatchString(draft.PhoneNumber) {
		return errors.Newf(errors.ErrCodeInvalidAccountConfig, "phone number %s is not in E.164 format", draft.PhoneNumber)
	}
	return nil
}

func generateNumericCode(length int) (string, error) {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}
