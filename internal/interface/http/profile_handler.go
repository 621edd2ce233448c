package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/accsoftware/acc-backend/internal/application"
	"github.com/accsoftware/acc-backend/pkg/helpers"
	"github.com/accsoftware/acc-backend/pkg/response"
	"github.com/accsoftware/acc-backend/pkg/validation"
)

// maxLogoSize caps logo uploads at 2 MiB.
const maxLogoSize = 2 << 20

type ProfileHandler struct {
	Svc     *application.Service
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewProfileHandler(svc *application.Service, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *ProfileHandler {
	return &ProfileHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

func userIDFrom(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.GetString("userID"), 10, 64)
	return id
}

type updateProfileRequest struct {
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Contact  string `json:"contact"`
	Company  string `json:"company"`
	Address  string `json:"address"`
	Logo     string `json:"logo" binding:"omitempty,url"`
	Image    string `json:"image" binding:"omitempty,url"`
}

// Me GET /api/auth/me
func (h *ProfileHandler) Me(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), userIDFrom(c))
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("profile lookup failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success(c, http.StatusOK, userView(u), "profile", nil)
}

// UpdateProfile PUT /api/auth/profile re-issues the session so the cookie
// claims track the new profile.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.UpdateProfile(c.Request.Context(), userIDFrom(c), application.UpdateProfileInput{
		Name:     req.Name,
		LastName: req.LastName,
		Contact:  req.Contact,
		Company:  req.Company,
		Address:  req.Address,
		Logo:     req.Logo,
		Image:    req.Image,
	})
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("profile update failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	pair, err := h.Svc.IssueTokens(u)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	h.Cookies.SetSession(c, pair.Session, pair.SessionExpiry)
	response.Success(c, http.StatusOK, userView(u), "profile updated", nil)
}

// UploadLogo POST /api/auth/profile/logo (multipart field "logo")
func (h *ProfileHandler) UploadLogo(c *gin.Context) {
	fh, err := c.FormFile("logo")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "logo file is required", nil)
		return
	}
	if fh.Size > maxLogoSize {
		response.Error[any](c, http.StatusBadRequest, "logo exceeds maximum size", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "could not read upload", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadLogo(c.Request.Context(), userIDFrom(c), f, fh.Filename, fh.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, application.ErrUserNotFound) {
			response.Error[any](c, http.StatusNotFound, "user not found", nil)
			return
		}
		h.Logger.WithError(err).Error("logo upload failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logo": url}, "logo uploaded", nil)
}

// Logout POST /api/auth/logout discards the client-side cookie; tokens
// already issued expire on their own.
func (h *ProfileHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// Search GET /api/users/search?q=&size=
func (h *ProfileHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "q is required", nil)
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Error("user search failed")
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", gin.H{"count": len(hits)})
}
