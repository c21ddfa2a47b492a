package notification

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TP-Master1-GL/terra-notification-service/internal/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	return db
}

func int64p(v int64) *int64 { return &v }

func TestSaveCreatesRecord(t *testing.T) {
	store := NewStore(testDB(t), zap.NewNop())

	record, err := store.Save(context.Background(), models.EventUserRegistered,
		"a@b.com", "Hi Ada, your account has been created successfully!", int64p(123), "Ada", "")
	require.NoError(t, err)

	assert.NotZero(t, record.ID)
	assert.Equal(t, "USER_REGISTERED", record.Type)
	assert.Equal(t, "a@b.com", record.UserEmail)
	require.NotNil(t, record.UserID)
	assert.Equal(t, int64(123), *record.UserID)
	require.NotNil(t, record.Username)
	assert.Equal(t, "Ada", *record.Username)
	assert.Nil(t, record.Role)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestSaveEmptyOptionalFieldsAreNull(t *testing.T) {
	db := testDB(t)
	store := NewStore(db, zap.NewNop())

	_, err := store.Save(context.Background(), models.EventUserUpdated, "x@y.com", "", nil, "", "")
	require.NoError(t, err)

	var got models.Notification
	require.NoError(t, db.First(&got).Error)
	assert.Nil(t, got.UserID)
	assert.Nil(t, got.Username)
	assert.Nil(t, got.Role)
	assert.Nil(t, got.Message)
}

func TestSaveDuplicatesAreTwoRows(t *testing.T) {
	// at-least-once delivery: redelivery produces a second audit row,
	// not a conflict
	db := testDB(t)
	store := NewStore(db, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := store.Save(context.Background(), models.EventUserRegistered,
			"a@b.com", "welcome", int64p(123), "Ada", "")
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSaveFailureReturnsPersistenceError(t *testing.T) {
	db := testDB(t)
	// drop the table so the insert fails
	require.NoError(t, db.Migrator().DropTable(&models.Notification{}))

	store := NewStore(db, zap.NewNop())
	_, err := store.Save(context.Background(), models.EventUserRegistered, "a@b.com", "welcome", nil, "", "")

	require.Error(t, err)
	var persistenceErr *PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)
	assert.NotNil(t, persistenceErr.Unwrap())
}
