// Package main runs the trust core without a database using in-memory
// repositories. This is useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without database setup
//
// Note: All data is lost when the server stops. For production, use
// cmd/trustd with PostgreSQL.
package main

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/tendant/chi-demo/app"

	auditapi "github.com/doorpasses/trustcore/pkg/audit/api"
	impersonateapi "github.com/doorpasses/trustcore/pkg/impersonate/api"

	"github.com/doorpasses/trustcore/pkg/audit"
	"github.com/doorpasses/trustcore/pkg/client"
	"github.com/doorpasses/trustcore/pkg/iam"
	"github.com/doorpasses/trustcore/pkg/impersonate"
	"github.com/doorpasses/trustcore/pkg/token"
)

const (
	jwtSecret = "inmem-dev-secret-change-in-production"
	issuer    = "trustcore-inmem"
	audience  = "trustcore"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting in-memory trust core service (no database required)")

	orgRepo := iam.NewInMemOrganizationRepository()
	systemOrg := orgRepo.SeedOrganization(iam.Organization{
		Slug: iam.SystemAuditOrgSlug,
		Name: "System Audit",
	})
	slog.Info("Seeded system audit organization", "id", systemOrg.ID, "slug", systemOrg.Slug)

	auditService := audit.NewService(audit.NewInMemRepository())
	narrativeSink := audit.NewInMemNarrativeSink()
	orgService := iam.NewOrganizationService(orgRepo)

	sessionStore := impersonate.NewInMemSessionStore()
	impersonateService := impersonate.NewService(sessionStore, auditService, narrativeSink, orgService)

	tokenService := token.NewService(token.NewJwtGenerator(jwtSecret, issuer, audience))
	cookieSetter := token.NewCookieSetter(true, false)

	impersonateHandle := impersonateapi.NewHandle(impersonateService, tokenService, cookieSetter)
	auditHandle := auditapi.NewHandle(auditService)

	server := app.NewApp(app.WithPort(4000))
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	tokenAuth := jwtauth.New("HS256", []byte(jwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		impersonateHandle.Routes(r)
		auditHandle.Routes(r)
	})

	slog.Info("In-memory trust core listening", "port", 4000)
	server.Run()
}
