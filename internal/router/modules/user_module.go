package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accsoftware/acc-backend/internal/container"
	handlers "github.com/accsoftware/acc-backend/internal/interface/http"
	"github.com/accsoftware/acc-backend/internal/interface/middleware"
	"github.com/accsoftware/acc-backend/pkg/helpers"
)

// UserModule wires the session-protected profile endpoints.
// Protected: POST /api/auth/logout, GET /api/auth/me, PUT /api/auth/profile,
// POST /api/auth/profile/logo, GET /api/users/search
type UserModule struct {
	Handler *handlers.ProfileHandler
	JWT     *helpers.JWTManager
}

func NewUserModule(h *handlers.ProfileHandler, jwt *helpers.JWTManager) *UserModule {
	return &UserModule{Handler: h, JWT: jwt}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	auth := rg.Group("/")
	auth.Use(middleware.Session(m.JWT))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), middleware.AllowPrivateIP()),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/auth/logout", m.Handler.Logout)
		auth.GET("/auth/me", m.Handler.Me)
		auth.PUT("/auth/profile", m.Handler.UpdateProfile)
		auth.POST("/auth/profile/logo", m.Handler.UploadLogo)
		auth.GET("/users/search", m.Handler.Search)
	}
}
