package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marcelolino/servicos-conecte-sub000/internal/models"
	"github.com/marcelolino/servicos-conecte-sub000/internal/store"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func runMigrations(db *sql.DB) error {
	migrationDir := "../../migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		filePath := filepath.Join(migrationDir, filename)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", filename, err)
		}
	}

	return nil
}

var emailSeq atomic.Int64

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, emailSeq.Add(1))
}

func createClient(t *testing.T, db *sql.DB) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, uniqueEmail("client"), "Test Client", models.RoleClient)
	if err != nil {
		t.Fatalf("Create client: %v", err)
	}
	return user
}

func createAdmin(t *testing.T, db *sql.DB) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, uniqueEmail("admin"), "Test Admin", models.RoleAdmin)
	if err != nil {
		t.Fatalf("Create admin: %v", err)
	}
	return user
}

// createProvider seeds a provider user plus profile in the given approval
// state and returns both.
func createProvider(t *testing.T, db *sql.DB, approval string) (*models.User, *models.Provider) {
	t.Helper()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, db, uniqueEmail("provider"), "Test Provider", models.RoleProvider)
	if err != nil {
		t.Fatalf("Create provider user: %v", err)
	}

	provider, err := store.CreateProvider(ctx, db, user.ID, "Test Business")
	if err != nil {
		t.Fatalf("Create provider profile: %v", err)
	}

	if approval != models.ApprovalPending {
		provider, err = store.SetProviderApproval(ctx, db, provider.ID, approval)
		if err != nil {
			t.Fatalf("Set provider approval: %v", err)
		}
	}

	return user, provider
}

func createCategory(t *testing.T, db *sql.DB) *models.ServiceCategory {
	t.Helper()
	category, err := store.CreateServiceCategory(context.Background(), db,
		fmt.Sprintf("Category %d", emailSeq.Add(1)))
	if err != nil {
		t.Fatalf("Create category: %v", err)
	}
	return category
}

func createCatalogService(t *testing.T, db *sql.DB, categoryID int64, price int64) *models.CatalogService {
	t.Helper()
	service, err := store.CreateCatalogService(context.Background(), db, categoryID,
		fmt.Sprintf("Catalog Service %d", emailSeq.Add(1)), "Test", decimal.NewFromInt(price), models.ChargingFixed)
	if err != nil {
		t.Fatalf("Create catalog service: %v", err)
	}
	return service
}

func createProviderService(t *testing.T, db *sql.DB, providerID int64, price int64) *models.ProviderService {
	t.Helper()
	service, err := store.CreateProviderService(context.Background(), db, providerID, nil,
		fmt.Sprintf("Provider Service %d", emailSeq.Add(1)), "Test", decimal.NewFromInt(price), models.ChargingFixed)
	if err != nil {
		t.Fatalf("Create provider service: %v", err)
	}
	return service
}

// createCompletedRequest walks a service request through the full lifecycle
// so an earning exists for the given provider.
func createCompletedRequest(t *testing.T, db *sql.DB, client *models.User, providerUser *models.User, categoryID int64, amount int64) *models.ServiceRequest {
	t.Helper()
	ctx := context.Background()

	req, err := store.CreateServiceRequest(ctx, db, client.ID, store.ServiceRequestInput{
		CategoryID:  categoryID,
		Title:       "Test job",
		TotalAmount: decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("Create service request: %v", err)
	}

	providerActor := models.Actor{UserID: providerUser.ID, Role: models.RoleProvider}
	clientActor := models.Actor{UserID: client.ID, Role: models.RoleClient}

	if _, err := store.UpdateServiceRequestStatus(ctx, db, providerActor, req.ID, models.StatusAccepted); err != nil {
		t.Fatalf("Accept request: %v", err)
	}
	if _, err := store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusInProgress); err != nil {
		t.Fatalf("Start request: %v", err)
	}
	completed, err := store.UpdateServiceRequestStatus(ctx, db, clientActor, req.ID, models.StatusCompleted)
	if err != nil {
		t.Fatalf("Complete request: %v", err)
	}

	return completed
}
