package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jinzhu/copier"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/gateway"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/notification"
	"github.com/fiscalware/govgate/pkg/procuration"
	"github.com/fiscalware/govgate/pkg/proofstore"
)

type GovgateDbConfig struct {
	// PersistenceType selects the procuration repository backend, "postgres"
	// or "inmem".
	PersistenceType string `env:"PERSISTENCE_TYPE" env-default:"postgres"`
	Host            string `env:"GOVGATE_PG_HOST" env-default:"localhost"`
	Port            uint16 `env:"GOVGATE_PG_PORT" env-default:"5432"`
	Database        string `env:"GOVGATE_PG_DATABASE" env-default:"govgate_db"`
	User            string `env:"GOVGATE_PG_USER" env-default:"govgate"`
	Password        string `env:"GOVGATE_PG_PASSWORD" env-default:"pwd"`
}

func (d GovgateDbConfig) toDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

type JwtConfig struct {
	JwtSecret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}

type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:"noreply@example.com"`
	Password string `env:"EMAIL_PASSWORD" env-default:"pwd"`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

type PortalConfig struct {
	IssuerBaseURL string `env:"PORTAL_ISSUER_BASE_URL" env-default:"https://procuracao.fazenda.gov.example"`
	// APIKeys holds state-issued keys as "UF=key" pairs separated by commas,
	// e.g. "AM=key1,BA=key2".
	APIKeys       string `env:"PORTAL_API_KEYS" env-default:""`
	OperatorEmail string `env:"OPERATOR_EMAIL" env-default:"fiscal@example.com"`
	ProofDataDir  string `env:"PROOF_DATA_DIR" env-default:"data/proofs"`
}

type Config struct {
	GovgateDbConfig GovgateDbConfig
	AppConfig       app.AppConfig
	JwtConfig       JwtConfig
	EmailConfig     EmailConfig
	PortalConfig    PortalConfig
}

func parseAPIKeys(raw string) map[string]string {
	keys := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		code, key, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || code == "" {
			continue
		}
		keys[code] = key
	}
	return keys
}

func main() {

	config := Config{}
	cleanenv.ReadEnv(&config)

	server := app.DefaultApp()

	app.RegisterHealthzRoutes(server.R)

	dbConfig := config.GovgateDbConfig.toDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	procurationRepo, err := procuration.NewRepository(config.GovgateDbConfig.PersistenceType, procuration.RepositoryConfig{DB: pool})
	if err != nil {
		slog.Error("Failed creating procuration repository", "type", config.GovgateDbConfig.PersistenceType, "error", err)
		os.Exit(-1)
	}
	credentialStore := certstore.NewPostgresCredentialStore(pool)
	trail := audit.NewTrail(audit.NewPostgresStore(pool))

	proofs, err := proofstore.NewFileStore(config.PortalConfig.ProofDataDir)
	if err != nil {
		slog.Error("Failed creating proof store", "dir", config.PortalConfig.ProofDataDir, "error", err)
		os.Exit(-1)
	}

	var smtpConfig notification.SMTPConfig
	copier.Copy(&smtpConfig, &config.EmailConfig)
	emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
	if err != nil {
		slog.Error("Failed creating email notifier", "host", smtpConfig.Host, "error", err)
		os.Exit(-1)
	}

	notificationManager := notification.NewManager()
	notificationManager.RegisterNotifier(notification.EmailSystem, emailNotifier)
	for _, notifType := range []notification.Type{
		notification.TypeDelegationMissing,
		notification.TypeProcurationIssued,
		notification.TypeProcurationFailed,
	} {
		if err := notificationManager.RegisterRoute(notifType, notification.EmailSystem); err != nil {
			slog.Error("Failed registering notification route", "type", notifType, "error", err)
			os.Exit(-1)
		}
	}

	registry := jurisdiction.NewRegistry()
	apiKeys := parseAPIKeys(config.PortalConfig.APIKeys)

	issuer := procuration.NewHTTPIssuer(config.PortalConfig.IssuerBaseURL)
	lifecycleService := procuration.NewLifecycleService(
		procurationRepo,
		credentialStore,
		proofs,
		trail,
		issuer,
		procuration.WithNotificationManager(notificationManager),
		procuration.WithOperatorEmail(config.PortalConfig.OperatorEmail),
	)

	broker := authbroker.NewBroker(registry, authbroker.WithAPIKeys(apiKeys))
	gatewayService := gateway.NewService(
		procuration.NewSelector(procurationRepo, registry),
		credentialStore,
		broker,
		registry,
		trail,
		gateway.NewPostgresSink(pool),
		gateway.NewPostgresJobQueue(pool),
		gateway.WithAPIKeys(apiKeys),
		gateway.WithNotificationManager(notificationManager),
		gateway.WithOperatorEmail(config.PortalConfig.OperatorEmail),
	)

	procurationHandle := procuration.NewHandler(lifecycleService)
	gatewayHandle := gateway.NewHandler(gatewayService)

	tokenAuth := jwtauth.New("HS256", []byte(config.JwtConfig.JwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		procurationHandle.RegisterRoutes(r)
		gatewayHandle.RegisterRoutes(r)
	})

	server.Run()
}
