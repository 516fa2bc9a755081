package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vncsmyrnk/livepoll/internal/core/domain"
)

func setupPostgresContainer(ctx context.Context) (testcontainers.Container, string, error) {
	pgContainer, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", err
	}

	return pgContainer, connStr, nil
}

// setupDB starts a migrated database that lives until the test ends.
func setupDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	container, connStr, err := setupPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return db, connStr
}

func createUser(t *testing.T, db *sql.DB) uuid.UUID {
	t.Helper()
	user := &domain.User{Email: fmt.Sprintf("user-%s@example.com", uuid.NewString()), Name: "Tester"}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user.ID
}

func createPoll(t *testing.T, db *sql.DB, ownerID uuid.UUID, title string, options ...string) *domain.Poll {
	t.Helper()
	now := time.Now()
	poll := &domain.Poll{
		ID:        uuid.New(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	for i, text := range options {
		poll.Options = append(poll.Options, domain.PollOption{
			ID:        uuid.New(),
			PollID:    poll.ID,
			Text:      text,
			Position:  i,
			CreatedAt: now,
		})
	}
	require.NoError(t, NewPollRepository(db).Save(context.Background(), poll))
	return poll
}

func newVote(pollID, optionID, voterID uuid.UUID) *domain.Vote {
	return &domain.Vote{
		ID:        uuid.New(),
		PollID:    pollID,
		OptionID:  optionID,
		VoterID:   voterID,
		CreatedAt: time.Now(),
	}
}
