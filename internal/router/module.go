package router

import "github.com/gin-gonic/gin"

// Module is implemented by the auth and user modules; each registers its own
// routes and rate limits on the /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
