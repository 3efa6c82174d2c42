package friendship

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"amigo/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named shared-cache in-memory database so the connection pool sees one store.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Friendship{}))
	return db
}

// newFileTestDB backs the store with a temp file so concurrent transactions from
// multiple goroutines contend the way they would against a real server database.
func newFileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate",
		filepath.Join(t.TempDir(), "friendship.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Friendship{}))
	return db
}

func createUser(t *testing.T, db *gorm.DB, nickname string) *models.User {
	t.Helper()

	user := &models.User{
		Nickname:     nickname,
		Email:        nickname + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func pairRows(t *testing.T, db *gorm.DB, fromID, toID uint) []models.Friendship {
	t.Helper()

	var rows []models.Friendship
	require.NoError(t, db.Where("requester_id = ? AND addressee_id = ?", fromID, toID).
		Order("id").Find(&rows).Error)
	return rows
}

func TestSendCreatesOutstandingRequest(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	created, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, created.RequesterID)
	assert.Equal(t, bob.ID, created.AddresseeID)
	assert.Equal(t, models.StatusRequested, created.Status)

	rows := pairRows(t, db, alice.ID, bob.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, models.StatusRequested, rows[0].Status)
}

func TestSendToSelfRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")

	_, err := svc.Send(alice.ID, alice.ID)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSendToNonexistentUserRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")

	_, err := svc.Send(alice.ID, alice.ID+1000)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSendWhilePendingConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)

	_, err = svc.Send(alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)

	rows := pairRows(t, db, alice.ID, bob.ID)
	assert.Len(t, rows, 1)
}

func TestSendWhenAlreadyFriendsConflicts(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Accept(bob.ID, alice.ID))

	_, err = svc.Send(alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrConflict)

	// The mirror direction is friends too, so bob cannot re-request either.
	_, err = svc.Send(bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestResendAfterDeclineSucceeds(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Decline(bob.ID, alice.ID))

	_, err = svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)

	// Declined history is kept alongside the fresh request.
	rows := pairRows(t, db, alice.ID, bob.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, models.StatusDeclined, rows[0].Status)
	assert.Equal(t, models.StatusRequested, rows[1].Status)
}

func TestAcceptProducesMutualState(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Accept(bob.ID, alice.ID))

	fromAlice, err := svc.RelationBetween(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, fromAlice.Status)

	fromBob, err := svc.RelationBetween(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, fromBob.Status)
}

func TestAcceptAfterDeclineFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Decline(bob.ID, alice.ID))

	// The declined row is not an outstanding request anymore.
	err = svc.Accept(bob.ID, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// No reciprocal row materialized for the failed accept.
	assert.Empty(t, pairRows(t, db, bob.ID, alice.ID))
}

func TestRequesterCannotAnswerOwnRequest(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)

	// Alice is the requester; the outstanding request points at Bob.
	assert.ErrorIs(t, svc.Accept(alice.ID, bob.ID), ErrNotFound)
	assert.ErrorIs(t, svc.Decline(alice.ID, bob.ID), ErrNotFound)

	// The request survived both attempts.
	rel, err := svc.RelationBetween(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, rel.Status)
}

func TestDeclineWithoutRequestFails(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	assert.ErrorIs(t, svc.Decline(bob.ID, alice.ID), ErrNotFound)
}

func TestAcceptFlipsMutualPendingRequests(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = svc.Send(bob.ID, alice.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Accept(bob.ID, alice.ID))

	// Both existing rows flipped; no third row, no orphaned pending request.
	aliceRows := pairRows(t, db, alice.ID, bob.ID)
	bobRows := pairRows(t, db, bob.ID, alice.ID)
	require.Len(t, aliceRows, 1)
	require.Len(t, bobRows, 1)
	assert.Equal(t, models.StatusAccepted, aliceRows[0].Status)
	assert.Equal(t, models.StatusAccepted, bobRows[0].Status)
}

func TestRelationBetweenReportsLatestRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.RelationBetween(alice.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Decline(bob.ID, alice.ID))
	_, err = svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)

	// The fresh request, not the declined history, is the current relation.
	rel, err := svc.RelationBetween(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, rel.Status)
}

func TestConcurrentAcceptAndDecline(t *testing.T) {
	db := newFileTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	_, err := svc.Send(alice.ID, bob.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var acceptErr, declineErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		acceptErr = svc.Accept(bob.ID, alice.ID)
	}()
	go func() {
		defer wg.Done()
		declineErr = svc.Decline(bob.ID, alice.ID)
	}()
	wg.Wait()

	// Exactly one transition wins; the loser observes no outstanding request.
	if acceptErr == nil {
		assert.ErrorIs(t, declineErr, ErrNotFound)
	} else {
		assert.ErrorIs(t, acceptErr, ErrNotFound)
		require.NoError(t, declineErr)
	}

	rows := pairRows(t, db, alice.ID, bob.ID)
	require.Len(t, rows, 1)
	reciprocal := pairRows(t, db, bob.ID, alice.ID)

	if acceptErr == nil {
		assert.Equal(t, models.StatusAccepted, rows[0].Status)
		require.Len(t, reciprocal, 1)
		assert.Equal(t, models.StatusAccepted, reciprocal[0].Status)
	} else {
		assert.Equal(t, models.StatusDeclined, rows[0].Status)
		assert.Empty(t, reciprocal)
	}
}

func TestConcurrentSendsCreateSingleRequest(t *testing.T) {
	db := newFileTestDB(t)
	svc := NewService(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Send(alice.ID, bob.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	rows := pairRows(t, db, alice.ID, bob.ID)
	assert.Len(t, rows, 1)
}
