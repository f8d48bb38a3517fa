// Package marketplace holds what every marketplace adapter shares: credential checks,
// capability guards, request scaffolding and static catalog loading.
package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"

	"archie-core-marketplace-layer/internal/domain"
	"archie-core-marketplace-layer/internal/infrastructure/httpexec"

	"github.com/rs/zerolog"
)

// Base carries the account-bound state of an adapter
type Base struct {
	account      *domain.Account
	creds        domain.Credentials
	exec         *httpexec.Executor
	requirements domain.Requirements
	capabilities domain.Capabilities
	limits       domain.RateLimits
	logger       zerolog.Logger
}

// NewBase resolves the account credentials and binds the static metadata of a marketplace
func NewBase(
	account *domain.Account,
	exec *httpexec.Executor,
	requirements domain.Requirements,
	capabilities domain.Capabilities,
	limits domain.RateLimits,
	logger zerolog.Logger,
) Base {
	accountID := ""
	if account != nil {
		accountID = account.ID
	}
	return Base{
		account:      account,
		creds:        domain.ResolveCredentials(account),
		exec:         exec,
		requirements: requirements,
		capabilities: capabilities,
		limits:       limits,
		logger: logger.With().
			Str("marketplace", string(requirements.Marketplace)).
			Str("accountId", accountID).
			Logger(),
	}
}

func (b Base) Marketplace() domain.Marketplace {
	return b.requirements.Marketplace
}

func (b Base) AccountID() string {
	if b.account == nil {
		return ""
	}
	return b.account.ID
}

func (b Base) Requirements() domain.Requirements {
	return b.requirements
}

func (b Base) Capabilities() domain.Capabilities {
	return b.capabilities
}

func (b Base) RateLimits() domain.RateLimits {
	return b.limits
}

func (b Base) Credentials() domain.Credentials {
	return b.creds
}

func (b Base) Executor() *httpexec.Executor {
	return b.exec
}

func (b Base) Logger() zerolog.Logger {
	return b.logger
}

// ValidateConfiguration returns the required credential keys the account is missing
func (b Base) ValidateConfiguration() []string {
	return b.creds.ValidateRequired(b.requirements.RequiredKeys()...)
}

// Check returns the error that must stop op before any network call, or nil
func (b Base) Check(op domain.Operation) *domain.Error {
	if !b.capabilities.Supports(op) {
		return domain.UnsupportedOperationError(b.Marketplace(), op)
	}
	if missing := b.ValidateConfiguration(); len(missing) > 0 {
		return domain.MissingCredentialsError(b.Marketplace(), missing)
	}
	return nil
}

// Endpoint returns the base URL, honouring the base_url account setting
func (b Base) Endpoint(def string) string {
	return strings.TrimRight(b.creds.SettingString("base_url", def), "/")
}

// Sandbox reports whether the account targets the marketplace sandbox
func (b Base) Sandbox() bool {
	if b.creds.SettingBool("sandbox", false) {
		return true
	}
	env := strings.ToLower(b.creds.Get("environment", ""))
	return env == "sandbox"
}

// NewRequest starts a request bound to the adapter's marketplace, account and pacing
func (b Base) NewRequest(method, url string) httpexec.Request {
	return httpexec.Request{
		Marketplace: b.Marketplace(),
		AccountID:   b.AccountID(),
		RateLimits:  b.limits,
		Method:      method,
		URL:         url,
		Headers:     map[string]string{},
	}
}

// Fail builds a failed result of any payload type
func Fail[T any](err *domain.Error) domain.Result[T] {
	return domain.Failure[T](err, 0)
}

// Invalid builds a validation_error result
func Invalid[T any](format string, args ...any) domain.Result[T] {
	return Fail[T](domain.NewError(domain.ErrValidation, fmt.Sprintf(format, args...)))
}

// Decode unmarshals the raw payload of a successful result and converts it
func Decode[R, T any](r domain.Result[json.RawMessage], convert func(R) (T, error)) domain.Result[T] {
	return domain.MapResult(r, func(raw json.RawMessage) (T, error) {
		var payload R
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &payload); err != nil {
				var zero T
				return zero, err
			}
		}
		return convert(payload)
	})
}

// Discard drops the payload of a successful result
func Discard(r domain.Result[json.RawMessage]) domain.Result[struct{}] {
	return domain.MapResult(r, func(json.RawMessage) (struct{}, error) { return struct{}{}, nil })
}
