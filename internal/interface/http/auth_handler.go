package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/accsoftware/acc-backend/config"
	"github.com/accsoftware/acc-backend/internal/application"
	"github.com/accsoftware/acc-backend/internal/domain/entity"
	"github.com/accsoftware/acc-backend/pkg/helpers"
	"github.com/accsoftware/acc-backend/pkg/response"
	"github.com/accsoftware/acc-backend/pkg/validation"
)

// oauth2ExchangeTimeout bounds the token exchange so an unresponsive
// provider cannot hang the request.
const oauth2ExchangeTimeout = 10 * time.Second

type AuthHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cfg     *config.Config
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *application.Service, logger *logrus.Logger, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		Svc:     svc,
		Logger:  logger,
		Cfg:     cfg,
		Cookies: helpers.NewCookie(cfg.CookieDomain, cfg.IsProduction()),
	}
}

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	LastName string `json:"last_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Contact  string `json:"contact"`
	Company  string `json:"company"`
	Address  string `json:"address"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required,pwd"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,otp"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"newPassword" binding:"required,pwd"`
}

func userView(u *entity.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"name":      u.Name,
		"last_name": u.LastName,
		"email":     u.Email,
		"contact":   u.Contact,
		"company":   u.Company,
		"address":   u.Address,
		"logo":      u.Logo,
		"image":     u.Image,
		"role":      u.Role,
	}
}

// SignUp POST /api/auth/sign-up
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.SignUp(c.Request.Context(), application.SignUpInput{
		Name:     req.Name,
		LastName: req.LastName,
		Email:    req.Email,
		Contact:  req.Contact,
		Company:  req.Company,
		Address:  req.Address,
		Role:     req.Role,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, application.ErrEmailTaken) {
			response.Error[any](c, http.StatusConflict, "email already registered", nil)
			return
		}
		h.Logger.WithError(err).Error("sign-up failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success(c, http.StatusCreated, userView(u), "account created", nil)
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, pair, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, application.ErrInvalidCredentials) {
			response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		h.Logger.WithError(err).Error("login failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	h.Cookies.SetSession(c, pair.Session, pair.SessionExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"token": pair.Bearer,
		"user":  userView(u),
	}, "login successful", gin.H{"token_expires_at": pair.BearerExpiry})
}

// ForgotPassword POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("forgot-password failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"sent": true}, "verification code sent", nil)
}

// VerifyOTP POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		switch {
		case errors.Is(err, application.ErrOTPExpired):
			response.Error[any](c, http.StatusBadRequest, "code expired or missing", nil)
		case errors.Is(err, application.ErrOTPInvalid):
			response.Error[any](c, http.StatusBadRequest, "invalid code", nil)
		default:
			h.Logger.WithError(err).Error("verify-otp failed")
			response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		}
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "code verified", nil)
}

// ResetPassword POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), req.Email, req.NewPassword); err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("reset-password failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}

type providerInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	State       string `json:"state"`
	AuthURL     string `json:"auth_url"`
	RedirectURL string `json:"redirect_url"`
}

func oauth2ConfigFor(p config.OAuth2Provider, redirectURL string) oauth2.Config {
	return oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       p.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  p.AuthURL,
			TokenURL: p.TokenURL,
		},
	}
}

func genState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// OAuth2Providers GET /api/auth/oauth2/providers
//
// The state minted here travels client side: the SPA holds it across the
// provider redirect and compares it against the state echoed back before it
// posts the code to the callback. The server keeps no per-request state, so
// the comparison cannot happen here.
func (h *AuthHandler) OAuth2Providers(c *gin.Context) {
	providers := make([]providerInfo, 0, len(h.Cfg.OAuth2Providers))
	for name, p := range h.Cfg.OAuth2Providers {
		state, err := genState()
		if err != nil {
			response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
			return
		}
		cfg := oauth2ConfigFor(p, p.RedirectURL)
		providers = append(providers, providerInfo{
			Name:        name,
			DisplayName: p.DisplayName,
			State:       state,
			AuthURL:     cfg.AuthCodeURL(state),
			RedirectURL: p.RedirectURL,
		})
	}
	if len(providers) == 0 {
		response.Error[any](c, http.StatusBadRequest, "no oauth2 providers configured", nil)
		return
	}
	response.Success(c, http.StatusOK, providers, "oauth2 providers", nil)
}

type oauth2CallbackRequest struct {
	Provider    string `json:"provider" binding:"required"`
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri" binding:"required"`
}

type oauth2UserInfo struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// OAuth2Callback POST /api/auth/oauth2 handles the provider redirect: code
// exchange, userinfo fetch, local account linking, session issuance. The SPA
// has already matched the returned state against the one it was handed by
// OAuth2Providers; the one-time authorization code is what the server
// validates, via the exchange itself.
func (h *AuthHandler) OAuth2Callback(c *gin.Context) {
	var req oauth2CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	provider, ok := h.Cfg.OAuth2Providers[req.Provider]
	if !ok {
		response.Error[any](c, http.StatusBadRequest, "unknown oauth2 provider", nil)
		return
	}

	cfg := oauth2ConfigFor(provider, req.RedirectURI)
	ctx, cancel := context.WithTimeout(c.Request.Context(), oauth2ExchangeTimeout)
	defer cancel()

	token, err := cfg.Exchange(ctx, req.Code)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "token exchange failed", nil)
		return
	}

	info, err := fetchUserInfo(ctx, cfg, token, provider.UserInfoURL)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to fetch user info", nil)
		return
	}
	if info.Email == "" {
		response.Error[any](c, http.StatusBadRequest, "provider did not return an email", nil)
		return
	}

	// Fail closed: any store error aborts the sign-in.
	u, err := h.Svc.LinkOAuthUser(c.Request.Context(), info.Email, info.Name, info.Picture)
	if err != nil {
		h.Logger.WithError(err).Error("oauth2 account linking failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	pair, err := h.Svc.IssueTokens(u)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	h.Cookies.SetSession(c, pair.Session, pair.SessionExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"token": pair.Bearer,
		"user":  userView(u),
	}, "login successful", gin.H{"token_expires_at": pair.BearerExpiry})
}

func fetchUserInfo(ctx context.Context, cfg oauth2.Config, token *oauth2.Token, url string) (*oauth2UserInfo, error) {
	client := cfg.Client(ctx, token)
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("userinfo request failed: " + resp.Status)
	}
	info := &oauth2UserInfo{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, err
	}
	return info, nil
}
