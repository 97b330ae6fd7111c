package idp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/loginapi"
	"github.com/aginhq/agin-login/pkg/webauthn"
)

// Handle wires the login endpoints onto a router.
type Handle struct {
	service       *LoginService
	tokens        *TokenService
	secureCookies bool
}

// HandleOption configures a Handle.
type HandleOption func(*Handle)

// WithSecureCookies marks issued cookies Secure. Off by default so local
// plain-HTTP development works.
func WithSecureCookies() HandleOption {
	return func(h *Handle) {
		h.secureCookies = true
	}
}

// NewHandle creates a handle over the service and token service.
func NewHandle(service *LoginService, tokens *TokenService, opts ...HandleOption) Handle {
	h := Handle{service: service, tokens: tokens}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

// Routes builds the router: the public login endpoints plus the
// token-protected settings endpoints.
func (h Handle) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/api/login/options", h.loginOptions)
	r.Post("/api/login/password", h.passwordLogin)
	r.Post("/api/login/totp", h.totpLogin)
	r.Post("/api/login/recovery-codes", h.recoveryCodeLogin)
	r.Post("/api/login/webauthn/start", h.webauthnStart)
	r.Post("/api/login/webauthn/finish", h.webauthnFinish)

	r.Group(func(r chi.Router) {
		ja := h.tokens.JWTAuth()
		r.Use(jwtauth.Verify(ja, jwtauth.TokenFromHeader, AccessTokenFromCookie))
		r.Use(jwtauth.Authenticator(ja))
		r.Get("/api/settings/profile", h.profile)
		r.Post("/api/settings/factors/webauthn/start", h.registerStart)
		r.Post("/api/settings/factors/webauthn/finish", h.registerFinish)
	})

	return r
}

func (h Handle) loginOptions(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		respondError(w, r, http.StatusBadRequest, "Username is required")
		return
	}

	account, options, err := h.service.Identify(r.Context(), username)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Login is temporarily unavailable")
		return
	}

	if account.ID != uuid.Nil {
		h.setLoginSession(w, account, false)
	}
	render.JSON(w, r, loginapi.LoginOptionsResponse{Options: factor.Strings(options)})
}

type passwordLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h Handle) passwordLogin(w http.ResponseWriter, r *http.Request) {
	var req passwordLoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, err := h.service.VerifyPassword(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	secondFactors := h.service.SecondFactors(account)
	if len(secondFactors) == 0 {
		h.completeLogin(w, r, account)
		return
	}

	h.setLoginSession(w, account, true)
	render.JSON(w, r, loginapi.LoginResponse{
		TwoFactorRequired: true,
		SecondFactors:     factor.Strings(secondFactors),
		RecentFactor:      string(account.RecentFactor),
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (h Handle) totpLogin(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.requireLoginSession(w, r, true)
	if !ok {
		return
	}

	var req codeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.VerifyTotp(r.Context(), accountID, req.Code); err != nil {
		respondError(w, r, http.StatusUnauthorized, "Invalid code")
		return
	}
	h.completeSecondFactor(w, r, accountID, factor.KindTotp)
}

func (h Handle) recoveryCodeLogin(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.requireLoginSession(w, r, true)
	if !ok {
		return
	}

	var req codeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.VerifyRecoveryCode(r.Context(), accountID, req.Code); err != nil {
		respondError(w, r, http.StatusUnauthorized, "Invalid recovery code")
		return
	}
	h.completeSecondFactor(w, r, accountID, factor.KindRecoveryCode)
}

func (h Handle) webauthnStart(w http.ResponseWriter, r *http.Request) {
	_, accountID, ok := h.requireLoginSession(w, r, false)
	if !ok {
		return
	}

	opts, err := h.service.BeginLoginCeremony(r.Context(), accountID)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Security key sign-in is not available")
		return
	}

	allowed := make([]string, 0, len(opts.AllowedCredentialIDs))
	for _, id := range opts.AllowedCredentialIDs {
		allowed = append(allowed, webauthn.EncodeBytes(id))
	}
	render.JSON(w, r, loginapi.CredentialRequestOptions{
		Challenge:        webauthn.EncodeBytes(opts.Challenge),
		RPID:             opts.RPID,
		AllowCredentials: allowed,
	})
}

func (h Handle) webauthnFinish(w http.ResponseWriter, r *http.Request) {
	claims, accountID, ok := h.requireLoginSession(w, r, false)
	if !ok {
		return
	}

	var payload loginapi.AssertionPayload
	if err := render.DecodeJSON(r.Body, &payload); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	assertion, err := decodeAssertion(payload)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid credential encoding")
		return
	}

	if err := h.service.FinishLoginCeremony(r.Context(), accountID, assertion); err != nil {
		respondError(w, r, http.StatusUnauthorized, "Security key verification failed")
		return
	}

	if claims.PasswordVerified {
		h.completeSecondFactor(w, r, accountID, factor.KindWebAuthn)
		return
	}

	account, err := h.service.Account(r.Context(), accountID)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Security key verification failed")
		return
	}
	h.completeLogin(w, r, account)
}

// ProfileResponse is the authenticated account summary.
type ProfileResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	RecentFactor string    `json:"recent_factor,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (h Handle) profile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccessToken(w, r)
	if !ok {
		return
	}

	account, err := h.service.Account(r.Context(), accountID)
	if err != nil {
		respondError(w, r, http.StatusNotFound, "Account not found")
		return
	}

	var resp ProfileResponse
	if err := copier.Copy(&resp, &account); err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	resp.ID = account.ID.String()
	resp.RecentFactor = string(account.RecentFactor)
	render.JSON(w, r, resp)
}

func (h Handle) registerStart(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccessToken(w, r)
	if !ok {
		return
	}

	opts, err := h.service.BeginRegistrationCeremony(r.Context(), accountID)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to start registration")
		return
	}

	excluded := make([]string, 0, len(opts.ExcludedCredentialIDs))
	for _, id := range opts.ExcludedCredentialIDs {
		excluded = append(excluded, webauthn.EncodeBytes(id))
	}
	render.JSON(w, r, loginapi.CredentialCreationOptions{
		Challenge:          webauthn.EncodeBytes(opts.Challenge),
		RPID:               opts.RPID,
		RPName:             opts.RPName,
		UserID:             webauthn.EncodeBytes(opts.UserID),
		Username:           opts.Username,
		ExcludeCredentials: excluded,
	})
}

func (h Handle) registerFinish(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccessToken(w, r)
	if !ok {
		return
	}

	var payload loginapi.AttestationPayload
	if err := render.DecodeJSON(r.Body, &payload); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	attestation, err := decodeAttestation(payload)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid credential encoding")
		return
	}

	if err := h.service.FinishRegistrationCeremony(r.Context(), accountID, attestation, payload.DisplayName); err != nil {
		respondError(w, r, http.StatusBadRequest, "Security key registration failed")
		return
	}
	render.JSON(w, r, map[string]bool{"registered": true})
}

// completeLogin finishes a flow with no further factor required: issue the
// access token, drop the login session.
func (h Handle) completeLogin(w http.ResponseWriter, r *http.Request, account Account) {
	token, expires, err := h.tokens.GenerateAccessToken(account.ID, account.Username)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "Failed to issue session")
		return
	}
	h.setCookie(w, AccessTokenCookie, token, expires)
	h.clearCookie(w, LoginSessionCookie)
	render.JSON(w, r, loginapi.LoginResponse{TwoFactorRequired: false})
}

func (h Handle) completeSecondFactor(w http.ResponseWriter, r *http.Request, accountID uuid.UUID, kind factor.Kind) {
	account, err := h.service.Account(r.Context(), accountID)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Invalid session")
		return
	}
	h.service.RecordSecondFactor(r.Context(), accountID, kind)
	h.completeLogin(w, r, account)
}

func (h Handle) setLoginSession(w http.ResponseWriter, account Account, passwordVerified bool) {
	token, expires, err := h.tokens.GenerateLoginSession(account.ID, account.Username, passwordVerified)
	if err != nil {
		return
	}
	h.setCookie(w, LoginSessionCookie, token, expires)
}

// requireLoginSession parses the login-session cookie. When passwordVerified
// is set, an attempt that has not passed the password step is rejected.
func (h Handle) requireLoginSession(w http.ResponseWriter, r *http.Request, passwordVerified bool) (SessionClaims, uuid.UUID, bool) {
	cookie, err := r.Cookie(LoginSessionCookie)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "No login in progress")
		return SessionClaims{}, uuid.Nil, false
	}
	claims, accountID, err := h.tokens.ParseSession(cookie.Value)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "No login in progress")
		return SessionClaims{}, uuid.Nil, false
	}
	if passwordVerified && !claims.PasswordVerified {
		respondError(w, r, http.StatusUnauthorized, "Password step not completed")
		return SessionClaims{}, uuid.Nil, false
	}
	return claims, accountID, true
}

func (h Handle) requireAccessToken(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	subject, _ := claims["sub"].(string)
	accountID, err := uuid.Parse(subject)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return accountID, true
}

func (h Handle) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h Handle) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, loginapi.ErrorResponse{Error: message})
}

func decodeAssertion(payload loginapi.AssertionPayload) (webauthn.Assertion, error) {
	var assertion webauthn.Assertion
	var err error
	if assertion.ID, err = webauthn.DecodeBytes(payload.ID); err != nil {
		return webauthn.Assertion{}, err
	}
	if assertion.RawID, err = webauthn.DecodeBytes(payload.RawID); err != nil {
		return webauthn.Assertion{}, err
	}
	if assertion.AuthenticatorData, err = webauthn.DecodeBytes(payload.AuthenticatorData); err != nil {
		return webauthn.Assertion{}, err
	}
	if assertion.ClientDataJSON, err = webauthn.DecodeBytes(payload.ClientDataJSON); err != nil {
		return webauthn.Assertion{}, err
	}
	if assertion.Signature, err = webauthn.DecodeBytes(payload.Signature); err != nil {
		return webauthn.Assertion{}, err
	}
	if assertion.UserHandle, err = webauthn.DecodeBytes(payload.UserHandle); err != nil {
		return webauthn.Assertion{}, err
	}
	assertion.Type = payload.Type
	return assertion, nil
}

func decodeAttestation(payload loginapi.AttestationPayload) (webauthn.Attestation, error) {
	var attestation webauthn.Attestation
	var err error
	if attestation.ID, err = webauthn.DecodeBytes(payload.ID); err != nil {
		return webauthn.Attestation{}, err
	}
	if attestation.RawID, err = webauthn.DecodeBytes(payload.RawID); err != nil {
		return webauthn.Attestation{}, err
	}
	if attestation.AttestationObject, err = webauthn.DecodeBytes(payload.AttestationObject); err != nil {
		return webauthn.Attestation{}, err
	}
	if attestation.ClientDataJSON, err = webauthn.DecodeBytes(payload.ClientDataJSON); err != nil {
		return webauthn.Attestation{}, err
	}
	attestation.Type = payload.Type
	return attestation, nil
}
