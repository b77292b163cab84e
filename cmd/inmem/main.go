// Package main runs govgate without a database or live portal connections,
// using in-memory repositories and a canned issuance sequence. Useful for:
// - Quick development and testing
// - Demo/prototype environments
// - Learning the API without portal credentials
//
// Note: All data is lost when the server stops. For production, use cmd/govgate with PostgreSQL.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/chi-demo/app"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/gateway"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/notification"
	"github.com/fiscalware/govgate/pkg/procuration"
	"github.com/fiscalware/govgate/pkg/proofstore"
)

const demoCertPassword = "inmem-demo-password"

// staticIssuer replays a canned issuance sequence so the demo works with no
// portal connectivity. Every step succeeds.
type staticIssuer struct{}

func (staticIssuer) Authenticate(ctx context.Context, cert certstore.DigitalCertificate, p procuration.Procuration) (string, error) {
	return "demo-session", nil
}

func (staticIssuer) Navigate(ctx context.Context, session string) error {
	return nil
}

func (staticIssuer) Submit(ctx context.Context, session string, p procuration.Procuration) (string, error) {
	return fmt.Sprintf("PROC-DEMO-%s", p.ID), nil
}

func (staticIssuer) FetchProof(ctx context.Context, session, grantReference string) ([]byte, error) {
	return []byte("%PDF-1.4 demo proof document"), nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: false,
		Level:     slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting In-Memory Govgate Service (no database or portal required)")
	slog.Info(strings.Repeat("=", 60))

	procurationRepo := procuration.NewInMemRepository()
	credentialStore := certstore.NewInMemCredentialStore()
	trail := audit.NewTrail(audit.NewInMemStore())
	proofs := proofstore.NewInMemStore()
	sink := gateway.NewInMemSink()
	jobs := gateway.NewInMemJobQueue()

	notificationManager := notification.NewManager()
	notificationManager.RegisterNotifier(notification.EmailSystem, notification.NewMockNotifier())
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

	lifecycleService := procuration.NewLifecycleService(
		procurationRepo,
		credentialStore,
		proofs,
		trail,
		staticIssuer{},
		procuration.WithNotificationManager(notificationManager),
		procuration.WithOperatorEmail("fiscal@example.com"),
	)

	gatewayService := gateway.NewService(
		procuration.NewSelector(procurationRepo, registry),
		credentialStore,
		authbroker.NewBroker(registry),
		registry,
		trail,
		sink,
		jobs,
		gateway.WithNotificationManager(notificationManager),
		gateway.WithOperatorEmail("fiscal@example.com"),
	)

	clientID, certID := seedDemoData(credentialStore, procurationRepo)

	server := app.NewApp(app.WithPort(4000))
	app.RegisterHealthzRoutes(server.R)

	procuration.NewHandler(lifecycleService).RegisterRoutes(server.R)
	gateway.NewHandler(gatewayService).RegisterRoutes(server.R)

	slog.Info(strings.Repeat("=", 60))
	slog.Info("In-Memory Govgate Service Ready")
	slog.Info("Demo client: " + clientID.String())
	slog.Info("Demo certificate: " + certID.String())
	slog.Info("")
	slog.Info("API Endpoints:")
	slog.Info("  POST /procurations                       - Issue a procuration")
	slog.Info("  POST /procurations/{id}/cancel           - Cancel a procuration")
	slog.Info("  GET  /procurations/{id}                  - Procuration detail")
	slog.Info("  GET  /procurations/{id}/audit            - Audit trail")
	slog.Info("  GET  /clients/{clientId}/procurations    - Client's procurations")
	slog.Info("  POST /gov/{uf}/debts/query               - Delegated debt query")
	slog.Info("  POST /gov/{uf}/guides                    - Delegated guide issuance")
	slog.Info(strings.Repeat("=", 60))

	server.Run()
}

// seedDemoData stores one client certificate and one already-issued
// procuration so the delegated endpoints have something to select.
func seedDemoData(certs certstore.CredentialStore, repo procuration.Repository) (uuid.UUID, uuid.UUID) {
	ctx := context.Background()
	clientID := uuid.New()

	payload, err := certstore.EncryptPayload([]byte("demo-pkcs12-material"), demoCertPassword)
	if err != nil {
		slog.Error("Failed preparing demo certificate", "error", err)
		os.Exit(-1)
	}
	cert, err := certs.CreateCertificate(ctx, certstore.DigitalCertificate{
		OwnerClientID:  clientID,
		Type:           certstore.TypeCorporateEntity,
		EncodedPayload: payload,
		Password:       demoCertPassword,
	})
	if err != nil {
		slog.Error("Failed seeding demo certificate", "error", err)
		os.Exit(-1)
	}

	now := time.Now().UTC()
	_, err = repo.Save(ctx, procuration.Procuration{
		ClientID:      clientID,
		AttorneyTaxID: "52998224725",
		AttorneyName:  "Maria Souza",
		IssuedAt:      now,
		ValidUntil:    now.AddDate(1, 0, 0),
		Status:        procuration.StatusIssued,
		AuthorizedServices: []string{
			jurisdiction.PermQueryDebts,
			jurisdiction.PermQueryInvoices,
			jurisdiction.PermIssueGuides,
		},
		CertificateID:  cert.ID,
		GrantReference: "PROC-DEMO-SEED",
	})
	if err != nil {
		slog.Error("Failed seeding demo procuration", "error", err)
		os.Exit(-1)
	}

	return clientID, cert.ID
}
