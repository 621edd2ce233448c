package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accsoftware/acc-backend/internal/container"
	handlers "github.com/accsoftware/acc-backend/internal/interface/http"
	"github.com/accsoftware/acc-backend/internal/interface/middleware"
	"github.com/accsoftware/acc-backend/pkg/helpers"
)

// AuthModule wires the public authentication endpoints with per-IP rate
// limits. Credential endpoints get tight windows; the OTP endpoints slightly
// looser ones since expiry bounds guessing anyway.
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	signUpLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIP(), nil)
	forgotLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	verifyLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	oauthLimiter := middleware.RateLimit(rdb, 20, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/auth/sign-up", signUpLimiter, m.Handler.SignUp)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/forgot-password", forgotLimiter, m.Handler.ForgotPassword)
	rg.POST("/auth/verify-otp", verifyLimiter, m.Handler.VerifyOTP)
	rg.POST("/auth/reset-password", resetLimiter, m.Handler.ResetPassword)

	rg.GET("/auth/oauth2/providers", oauthLimiter, m.Handler.OAuth2Providers)
	rg.POST("/auth/oauth2", oauthLimiter, m.Handler.OAuth2Callback)
}
