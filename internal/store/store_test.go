package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"smart-bin-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_TakeCommand(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedAction   string
		expectedErr      error
	}{
		{
			name: "Pending command is returned and deleted",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "commands" WHERE device_id = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"device_id", "action", "created_at"}).
						AddRow("ESP32_BIN_01", "RESET", now))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "commands" WHERE device_id = $1`)).
					WithArgs("ESP32_BIN_01").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedAction: "RESET",
		},
		{
			name: "No pending command",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "commands" WHERE device_id = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"device_id", "action", "created_at"}))
				mock.ExpectRollback()
			},
			expectedErr: ErrNotFound,
		},
		{
			name: "Concurrent take already deleted the row",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "commands" WHERE device_id = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"device_id", "action", "created_at"}).
						AddRow("ESP32_BIN_01", "RESET", now))
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "commands"`)).
					WithArgs("ESP32_BIN_01").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectRollback()
			},
			expectedErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			cmd, err := store.TakeCommand(context.Background(), "ESP32_BIN_01")

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedAction, cmd.Action)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_SaveStatus_Update(t *testing.T) {
	testCases := []struct {
		name         string
		rowsAffected int64
		expectedErr  error
	}{
		{name: "Version matches", rowsAffected: 1},
		{name: "Version moved on, conflict", rowsAffected: 0, expectedErr: ErrVersionConflict},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "bin_status" SET`)).
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectCommit()

			status := model.Status{DeviceID: "ESP32_BIN_02", FillPercentage: 50, LastUpdated: time.Now()}
			err := store.SaveStatus(context.Background(), status, 3)

			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_GetStatus(t *testing.T) {
	now := time.Now()

	t.Run("Existing status", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bin_status" WHERE device_id = $1`)).
			WillReturnRows(sqlmock.NewRows([]string{"device_id", "fill_percentage", "is_full", "lat", "lon", "last_updated", "version"}).
				AddRow("ESP32_BIN_03", 97.5, true, 5.318, 100.31, now, 4))

		status, err := store.GetStatus(context.Background(), "ESP32_BIN_03")
		require.NoError(t, err)
		assert.True(t, status.IsFull)
		assert.Equal(t, int64(4), status.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Missing status maps to ErrNotFound", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bin_status"`)).
			WillReturnRows(sqlmock.NewRows([]string{"device_id"}))

		_, err := store.GetStatus(context.Background(), "unknown")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Driver error is wrapped", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bin_status"`)).
			WillReturnError(errors.New("connection reset"))

		_, err := store.GetStatus(context.Background(), "ESP32_BIN_01")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestGormStore_AppendReadings(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "bin_history"`)).
		WithArgs("r-1", "ESP32_BIN_01", 42.0, nil, Any{}, nil, 5.314, 100.312, Any{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	temp := 28.5
	err := store.AppendReadings(context.Background(), model.Reading{
		ID:             "r-1",
		DeviceID:       "ESP32_BIN_01",
		FillPercentage: 42,
		TempC:          &temp,
		Lat:            5.314,
		Lon:            100.312,
		Timestamp:      time.Now(),
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
