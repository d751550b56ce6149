package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/simple-mfa/pkg/errors"
	"github.com/tendant/simple-mfa/pkg/mfa"
)

const ROLE_SYSADMIN = "SYS_ADMIN"

type JwtService interface {
	ParseTokenStr(tokenStr string) (*jwt.Token, error)
}

type Handle struct {
	mfaService      *mfa.MfaService
	settingsService *mfa.SettingsService
	jwtService      JwtService
}

func NewHandle(mfaService *mfa.MfaService, settingsService *mfa.SettingsService, jwtService JwtService) Handle {
	return Handle{
		mfaService:      mfaService,
		settingsService: settingsService,
		jwtService:      jwtService,
	}
}

// Routes returns the /2fa router.
func (h Handle) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/account/config", h.GetAccountConfig)
	r.Post("/account/config/generate", h.GenerateAccountConfig)
	r.Post("/account/config/submit", h.SubmitAccountConfig)
	r.Post("/account/config", h.VerifyAndSaveAccountConfig)
	r.Delete("/account/config", h.DeleteAccountConfig)
	r.Get("/providers", h.GetAvailableProviders)
	r.Get("/settings", h.GetSettings)
	r.Post("/settings", h.SaveSettings)

	return r
}

type securityContext struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Sysadmin bool
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	render.Status(r, errors.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, errorResponse{
		Code:    string(code),
		Message: err.Error(),
	})
}

// currentUser extracts the caller's tenant and user identity from the bearer
// token's custom claims.
func (h Handle) currentUser(r *http.Request) (securityContext, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "missing or invalid Authorization header")
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

	token, err := h.jwtService.ParseTokenStr(tokenStr)
	if err != nil {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "invalid access token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "invalid token claims")
	}

	customClaims, ok := claims["custom_claims"].(map[string]interface{})
	if !ok {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "invalid custom claims format")
	}

	tenantIDStr, ok := customClaims["tenant_id"].(string)
	if !ok {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "missing or invalid tenant_id in token")
	}
	tenantID, err := uuid.Parse(tenantIDStr)
	if err != nil {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "invalid tenant_id format in token")
	}

	userIDStr, ok := customClaims["user_id"].(string)
	if !ok {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "missing or invalid user_id in token")
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return securityContext{}, errors.New(errors.ErrCodeUnauthorized, "invalid user_id format in token")
	}

	sysadmin := false
	if roles, ok := customClaims["roles"].([]interface{}); ok {
		for _, role := range roles {
			if roleStr, ok := role.(string); ok && roleStr == ROLE_SYSADMIN {
				sysadmin = true
			}
		}
	}

	return securityContext{TenantID: tenantID, UserID: userID, Sysadmin: sysadmin}, nil
}

// Get user's 2FA account config
// (GET /2fa/account/config)
func (h Handle) GetAccountConfig(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	config, err := h.mfaService.GetAccountConfig(r.Context(), user.TenantID, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if config == nil {
		render.NoContent(w, r)
		return
	}

	render.JSON(w, r, config)
}

// Generate a new draft 2FA account config for a provider type
// (POST /2fa/account/config/generate?providerType=TOTP)
func (h Handle) GenerateAccountConfig(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	providerType := mfa.ProviderType(r.URL.Query().Get("providerType"))
	config, err := h.mfaService.GenerateAccountConfig(r.Context(), user.TenantID, user.UserID, providerType)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, config)
}

// Submit a draft 2FA account config to prepare for verification
// (POST /2fa/account/config/submit)
func (h Handle) SubmitAccountConfig(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var draft mfa.AccountConfig
	if err := render.DecodeJSON(r.Body, &draft); err != nil {
		writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	if err := h.mfaService.Submit(r.Context(), user.TenantID, user.UserID, draft); err != nil {
		writeError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// Verify the code for the pending config and save it
// (POST /2fa/account/config?verificationCode=123456)
func (h Handle) VerifyAndSaveAccountConfig(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var draft mfa.AccountConfig
	if err := render.DecodeJSON(r.Body, &draft); err != nil {
		writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	verificationCode := r.URL.Query().Get("verificationCode")
	if err := h.mfaService.CheckAndSave(r.Context(), user.TenantID, user.UserID, draft, verificationCode); err != nil {
		writeError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// Delete user's 2FA account config
// (DELETE /2fa/account/config)
func (h Handle) DeleteAccountConfig(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.mfaService.Delete(r.Context(), user.TenantID, user.UserID); err != nil {
		writeError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// List available 2FA provider types
// (GET /2fa/providers)
func (h Handle) GetAvailableProviders(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	providers, err := h.mfaService.ListAvailableProviders(r.Context(), user.TenantID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, providers)
}

// Get 2FA settings at the caller's scope
// (GET /2fa/settings)
func (h Handle) GetSettings(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	settings, err := h.settingsService.GetSettings(r.Context(), user.TenantID, user.Sysadmin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if settings == nil {
		render.NoContent(w, r)
		return
	}

	render.JSON(w, r, settings)
}

// Save 2FA settings: sysadmin writes replace the system settings, tenant
// writes replace that tenant's settings
// (POST /2fa/settings)
func (h Handle) SaveSettings(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var settings mfa.Settings
	if err := render.DecodeJSON(r.Body, &settings); err != nil {
		writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "unable to parse body"))
		return
	}

	if user.Sysadmin {
		err = h.settingsService.SaveSystemSettings(r.Context(), settings)
	} else {
		err = h.settingsService.SaveTenantSettings(r.Context(), user.TenantID, settings)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.NoContent(w, r)
}
