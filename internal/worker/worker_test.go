package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"flexiseat/internal/database"
	"flexiseat/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	booking := testBooking(1)
	if err := w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocal()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	w := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	booking := testBooking(2)
	if err := w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocal()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	w := NewSheetsWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	booking := testBooking(3)
	w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, "")
	task, _ := w.tryLocal()
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	w := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{MaxRetries: 5}, nil)

	ctx := context.Background()
	task := models.SyncTask{TaskType: TaskUpsert, BookingID: 9, Payload: "not json", Status: "pending"}
	if err := db.CreateSyncTask(ctx, &task); err != nil {
		t.Fatalf("create task: %v", err)
	}

	w.processTask(ctx, &task)

	// Undecodable payload never improves on retry, fail straight away.
	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestApply(t *testing.T) {
	sheets := &fakeSheets{}
	w := NewSheetsWorker(nil, sheets, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpsert, syncPayload{Booking: testBooking(1)}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpdateStatus, syncPayload{BookingID: 123, Status: models.StatusAccepted}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := w.apply(ctx, TaskDelete, syncPayload{BookingID: 123}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if sheets.deleteCalls != 1 {
			t.Fatalf("expected 1 delete call, got %d", sheets.deleteCalls)
		}
	})

	t.Run("MissingBooking", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpsert, syncPayload{}); err == nil {
			t.Fatalf("expected error for missing booking payload")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if err := w.apply(ctx, "reindex", syncPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestEnqueueTaskValidation(t *testing.T) {
	db := newTestDB(t)
	w := NewSheetsWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := w.EnqueueTask(ctx, "", 1, testBooking(1), ""); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := w.EnqueueTask(ctx, TaskUpsert, 0, nil, ""); err == nil {
		t.Fatalf("expected error for missing booking id")
	}

	// Booking id may come from the booking itself.
	if err := w.EnqueueTask(ctx, TaskUpsert, 0, testBooking(7), ""); err != nil {
		t.Fatalf("enqueue with embedded id: %v", err)
	}
	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(tasks) != 1 || tasks[0].BookingID != 7 {
		t.Fatalf("expected one task for booking 7, got %+v", tasks)
	}
}

func TestEnqueueTaskViaRedis(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{}
	w := NewSheetsWorker(db, sheets, client, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := w.EnqueueTask(ctx, TaskUpsert, 0, testBooking(5), ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// With redis up the task must go to the list, not the local channel.
	if _, ok := w.tryLocal(); ok {
		t.Fatalf("expected empty local queue when redis accepts the task")
	}
	if n, _ := client.LLen(ctx, redisQueueKey).Result(); n != 1 {
		t.Fatalf("expected 1 task in redis queue, got %d", n)
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	w.processTask(ctx, &task)

	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
}

func TestDeadLetter(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sheets := &fakeSheets{err: errors.New("quota exceeded")}
	w := NewSheetsWorker(db, sheets, client, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	if err := w.EnqueueTask(ctx, TaskDelete, 11, nil, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
	if n, _ := client.LLen(ctx, redisDeadLetterKey).Result(); n != 1 {
		t.Fatalf("expected 1 task in dead letter list, got %d", n)
	}
}

func TestDrain(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if err := w.EnqueueTask(ctx, TaskUpsert, 0, testBooking(i), ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if err := w.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if sheets.upsertCalls != 3 {
		t.Fatalf("expected 3 upsert calls, got %d", sheets.upsertCalls)
	}
	tasks, _ := db.GetPendingSyncTasks(ctx, 10)
	if len(tasks) != 0 {
		t.Fatalf("expected no pending tasks after drain, got %d", len(tasks))
	}
}

func TestResync(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	booking := testBooking(0)
	if err := db.CreateBooking(ctx, booking); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	sheets := &fakeSheets{}
	w := NewSheetsWorker(db, sheets, nil, RetryPolicy{}, nil)

	if err := w.Resync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	if sheets.replaceCalls != 1 {
		t.Fatalf("expected 1 replace call, got %d", sheets.replaceCalls)
	}
	if len(sheets.replaced) != 1 || sheets.replaced[0].DeskID != "A-1" {
		t.Fatalf("expected the stored booking in the rebuilt sheet, got %+v", sheets.replaced)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s fallback, got %s", d)
	}
}

// Helpers

type fakeSheets struct {
	err          error
	upsertCalls  int
	statusCalls  int
	deleteCalls  int
	replaceCalls int
	replaced     []*models.Booking
}

func (f *fakeSheets) UpsertBooking(ctx context.Context, b *models.Booking) error {
	f.upsertCalls++
	return f.err
}

func (f *fakeSheets) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) DeleteBooking(ctx context.Context, id int64) error {
	f.deleteCalls++
	return f.err
}

func (f *fakeSheets) ReplaceBookingsSheet(ctx context.Context, bookings []*models.Booking) error {
	f.replaceCalls++
	f.replaced = bookings
	return f.err
}

func testBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:          id,
		MemberID:    1,
		MemberName:  "Alex Chen",
		MemberRole:  models.RoleMember,
		DeskID:      "A-1",
		Zone:        "Creative Hub",
		Level:       3,
		Status:      models.StatusPending,
		BookingDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:   time.Now(),
	}
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "worker.db"), &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
