package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestPersonUpsert_WritesIndexFields(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO persons`).
		WithArgs("p1", "Asha Devi", "9876543210", "1990-02-29", "2012-11-05", "7", "Kasba", "Rampur",
			2, 29, 11, 5, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p := &entity.Person{
		ID:            "p1",
		Name:          "Asha Devi",
		Mobile:        "9876543210",
		Dob:           dates.ISO("1990-02-29"),
		Anniversary:   dates.ISO("2012-11-05"),
		Ward:          "7",
		Block:         "Kasba",
		GramPanchayat: "Rampur",
	}
	require.NoError(t, repo.Upsert(context.Background(), p))
	assert.Equal(t, now, p.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonUpsert_InvalidDateClearsIndex(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO persons`).
		WithArgs("p2", "Ravi", "", "2024-02-30", nil, "", "", "",
			nil, nil, nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	p := &entity.Person{ID: "p2", Name: "Ravi", Dob: dates.ISO("2024-02-30")}
	require.NoError(t, repo.Upsert(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonUpsert_RejectsMissingID(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	err := repo.Upsert(context.Background(), &entity.Person{Name: "No ID"})
	assert.ErrorIs(t, err, entity.ErrInvalidPerson)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonGetByMonthDay(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "mobile", "dob", "anniversary", "ward", "block", "gram_panchayat", "created_at", "updated_at"}).
		AddRow("p1", "Asha", "9876543210", "1990-12-18", nil, "1", "B", "G", now, now).
		AddRow("p2", "Ravi", "", time.Date(1985, time.December, 19, 0, 0, 0, 0, time.UTC), "2010-12-18", "", "", "", now, now)

	mock.ExpectQuery(`dob_month = \$1 AND dob_day = \$2\) OR \(anniversary_month = \$1 AND anniversary_day = \$2\) OR \(dob_month = \$3`).
		WithArgs(12, 18, 12, 19).
		WillReturnRows(rows)

	persons, err := repo.GetByMonthDay(context.Background(), []dates.MonthDay{
		{Month: time.December, Day: 18},
		{Month: time.December, Day: 19},
	})
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, dates.KindISO, persons[0].Dob.Kind())
	assert.True(t, persons[0].Anniversary.IsAbsent())
	assert.Equal(t, dates.KindCivil, persons[1].Dob.Kind())
	assert.Equal(t, "1985-12-19", persons[1].Dob.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonGetByAudience_Unknown(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	_, err := repo.GetByAudience(context.Background(), "WARD", "7")
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonGetByAudience_Block(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewPersonRepository(db, time.UTC)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "mobile", "dob", "anniversary", "ward", "block", "gram_panchayat", "created_at", "updated_at"}).
		AddRow("p1", "Asha", "9876543210", nil, nil, "1", "Kasba", "G", now, now)

	mock.ExpectQuery(`mobile <> '' AND block = \$1`).
		WithArgs("Kasba").
		WillReturnRows(rows)

	persons, err := repo.GetByAudience(context.Background(), entity.AudienceBlock, "Kasba")
	require.NoError(t, err)
	assert.Len(t, persons, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskGetByDueRange_WidensWindow(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewTaskRepository(db)

	rows := sqlmock.NewRows([]string{"id", "person_id", "name", "mobile", "ward", "block", "gram_panchayat", "type", "due_date", "status",
		"action_taken", "completed_by", "call_sent", "sms_sent", "whatsapp_sent", "created_at"}).
		AddRow("t1", "p1", "Asha", "98", "1", "B", "G", "BIRTHDAY", "2025-12-20T18:45:00Z", "PENDING", "", "", false, false, false, time.Now())

	mock.ExpectQuery(`LEFT\(due_date, 10\) BETWEEN \$1 AND \$2`).
		WithArgs("2025-12-19", "2025-12-26").
		WillReturnRows(rows)

	tasks, err := repo.GetByDueRange(context.Background(),
		dates.MustDate(2025, time.December, 20), dates.MustDate(2025, time.December, 25))
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.TaskBirthday, tasks[0].Type)
	assert.Equal(t, dates.KindISO, tasks[0].DueDate.Kind())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationUpsertBatch_Commits(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db)

	at := time.Date(2025, time.December, 18, 8, 0, 0, 0, time.UTC)
	ns := []*entity.ScheduledNotification{
		{ID: "action_reminder_2025-12-18_u1", RecipientID: "u1", Title: "Action Required", Body: "b1", ScheduledFor: at, Type: entity.NotificationAction},
		{ID: "heads_up_2025-12-18_u1", RecipientID: "u1", Title: "Tomorrow's Celebrations", Body: "b2", ScheduledFor: at.Add(12 * time.Hour), Type: entity.NotificationHeadsUp},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO scheduled_notifications`)
	prep.ExpectExec().
		WithArgs("action_reminder_2025-12-18_u1", "u1", "Action Required", "b1", at, "ACTION_REMINDER", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("heads_up_2025-12-18_u1", "u1", "Tomorrow's Celebrations", "b2", at.Add(12*time.Hour), "HEADS_UP", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertBatch(context.Background(), ns))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationUpsertBatch_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db)

	ns := []*entity.ScheduledNotification{
		{ID: "a", RecipientID: "u1", ScheduledFor: time.Now(), Type: entity.NotificationAction},
		{ID: "b", RecipientID: "u1", ScheduledFor: time.Now(), Type: entity.NotificationHeadsUp},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO scheduled_notifications`)
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.UpsertBatch(context.Background(), ns)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationUpsertBatch_EmptyIsNoop(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db)

	require.NoError(t, repo.UpsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationMarkSent(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db)

	sentAt := time.Now()
	mock.ExpectExec(`UPDATE scheduled_notifications\s+SET sent = true`).
		WithArgs("n1", sentAt, false, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduled_notifications\s+SET sent = true`).
		WithArgs("missing", sentAt, true, "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkSent(context.Background(), "n1", sentAt, false, ""))
	err := repo.MarkSent(context.Background(), "missing", sentAt, true, "")
	assert.ErrorIs(t, err, entity.ErrNotificationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationIncrementRetry(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery(`SET retry_count = retry_count \+ 1`).
		WithArgs("n1", "timeout").
		WillReturnRows(sqlmock.NewRows([]string{"retry_count"}).AddRow(2))

	count, err := repo.IncrementRetry(context.Background(), "n1", "timeout")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsGet(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`FROM settings WHERE id = \$1`).
		WithArgs("app_config").
		WillReturnRows(sqlmock.NewRows([]string{"id", "recipient_id", "alerts", "updated_at"}).
			AddRow("app_config", "u1", []byte(`{"heads_up_enabled":false,"action_template":"Custom"}`), time.Now()))
	mock.ExpectQuery(`FROM settings WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	s, err := repo.Get(context.Background(), "app_config")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.RecipientID)
	assert.False(t, s.Alerts.HeadsUpEnabled)
	assert.True(t, s.Alerts.ActionEnabled)
	assert.Equal(t, "Custom", s.Alerts.ActionTemplate)
	assert.Equal(t, entity.DefaultHeadsUpTemplate, s.Alerts.HeadsUpTemplate)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrSettingsNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByRole(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery(`WHERE role = \$1`).
		WithArgs("LEADER").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "mobile", "role", "device_token", "created_at"}).
			AddRow("u1", "Leader", "l@example.com", "9", "LEADER", "tok", time.Now()))
	mock.ExpectQuery(`WHERE role = \$1`).
		WithArgs("NOBODY").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.FindByRole(context.Background(), "LEADER")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = repo.FindByRole(context.Background(), "NOBODY")
	assert.ErrorIs(t, err, entity.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastRoundTrip(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()
	repo := NewBroadcastRepository(db)

	at := time.Date(2025, time.January, 1, 10, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM broadcasts`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "scheduled_at", "dial_number", "access_code", "language",
			"audience", "audience_value", "recipients", "creator_id", "creator_token", "created_at"}).
			AddRow("b1", "Ward meeting", at, "1800", "42", "HINDI", "BLOCK", "Kasba",
				[]byte(`[{"person_id":"p1","name":"Asha","mobile":"98"}]`), "u1", "", at))

	e, err := repo.GetByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, entity.AudienceBlock, e.Audience)
	require.Len(t, e.Recipients, 1)
	assert.Equal(t, "Asha", e.Recipients[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
