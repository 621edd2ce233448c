package router

import (
	"github.com/accsoftware/acc-backend/internal/application"
	"github.com/accsoftware/acc-backend/internal/container"
	pginfra "github.com/accsoftware/acc-backend/internal/infrastructure/postgres"
	handlers "github.com/accsoftware/acc-backend/internal/interface/http"
	"github.com/accsoftware/acc-backend/internal/router/modules"
)

func buildService() *application.Service {
	cfg := container.GetConfig()
	svc := &application.Service{
		Repo:         pginfra.NewUserRepository(container.GetPGPool()),
		JWT:          container.GetJWT(),
		Logger:       container.GetLogger(),
		GCS:          container.GetGCS(),
		GCSBucket:    cfg.GCSBucket,
		ES:           container.GetES(),
		ESUsersIndex: cfg.ESUsersIndex,
		OTPTTL:       cfg.OTPTTL,
		MailEnabled:  cfg.MailSendEnabled,
		CompanyName:  cfg.CompanyName,
		LogoURL:      cfg.LogoURL,
		SupportURL:   cfg.SupportURL,
	}
	// assign only when non-nil so the interface stays nil without a broker
	if pub := container.GetRabbitPub(); pub != nil {
		svc.Pub = pub
	}
	return svc
}

// InitModules initializes all application modules and registers them with the
// router registry. Called once during startup.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	svc := buildService()

	authHandler := handlers.NewAuthHandler(svc, container.GetLogger(), cfg)
	profileHandler := handlers.NewProfileHandler(svc, container.GetLogger(), cfg.CookieDomain, cfg.IsProduction())

	r.Add(modules.NewAuthModule(authHandler, container.GetJWT()))
	r.Add(modules.NewUserModule(profileHandler, container.GetJWT()))
}
