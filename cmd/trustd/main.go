package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	auditapi "github.com/doorpasses/trustcore/pkg/audit/api"
	impersonateapi "github.com/doorpasses/trustcore/pkg/impersonate/api"

	"github.com/doorpasses/trustcore/pkg/audit"
	"github.com/doorpasses/trustcore/pkg/client"
	"github.com/doorpasses/trustcore/pkg/config"
	"github.com/doorpasses/trustcore/pkg/fieldcrypt"
	"github.com/doorpasses/trustcore/pkg/iam"
	"github.com/doorpasses/trustcore/pkg/impersonate"
	"github.com/doorpasses/trustcore/pkg/token"
)

type Config struct {
	DatabaseConfig        config.DatabaseConfig
	JwtConfig             config.JwtConfig
	FieldEncryptionConfig config.FieldEncryptionConfig
	AppConfig             app.AppConfig
}

func main() {
	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.DatabaseConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	// Field encryption is fail-closed: without key material the service
	// refuses to start rather than fall back to plaintext.
	cryptoService, err := fieldcrypt.NewServiceFromConfig(cfg.FieldEncryptionConfig)
	if err != nil {
		slog.Error("Failed initializing field encryption", "err", err)
		os.Exit(-1)
	}
	auditService := audit.NewService(audit.NewPostgresRepository(pool))
	narrativeSink := audit.NewPostgresNarrativeSinkWithEncryption(pool, cryptoService)
	orgService := iam.NewOrganizationService(iam.NewPostgresOrganizationRepository(pool))

	sessionStore := impersonate.NewPostgresSessionStore(pool)
	impersonateService := impersonate.NewService(sessionStore, auditService, narrativeSink, orgService)

	tokenService := token.NewService(token.NewJwtGenerator(cfg.JwtConfig.Secret, cfg.JwtConfig.Issuer, cfg.JwtConfig.Audience))
	cookieSetter := token.NewCookieSetter(cfg.JwtConfig.CookieHttpOnly, cfg.JwtConfig.CookieSecure)

	impersonateHandle := impersonateapi.NewHandle(impersonateService, tokenService, cookieSetter)
	auditHandle := auditapi.NewHandle(auditService)

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.Secret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(client.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		r.Use(client.AuthUserMiddleware)
		impersonateHandle.Routes(r)
		auditHandle.Routes(r)
	})

	server.Run()
}
