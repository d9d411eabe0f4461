package service

import (
	"context"
	"sync"
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

var kolkata = mustLoad("Asia/Kolkata")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fixedClock returns a clock stuck at hh:mm on the given civil date in loc.
func fixedClock(d dates.Date, hour, minute int, loc *time.Location) dates.Clock {
	t := dates.At(d, hour, minute, loc)
	return dates.ClockFunc(func() time.Time { return t })
}

func person(id, name, dob, anniversary string) *entity.Person {
	return &entity.Person{
		ID:          id,
		Name:        name,
		Mobile:      "98765" + id,
		Dob:         dates.ISO(dob),
		Anniversary: dates.ISO(anniversary),
		Ward:        "W1",
		Block:       "B1",
	}
}

type fakePersonRepo struct {
	upsert        func(ctx context.Context, p *entity.Person) error
	getByID       func(ctx context.Context, id string) (*entity.Person, error)
	getAll        func(ctx context.Context) ([]*entity.Person, error)
	getByMonthDay func(ctx context.Context, days []dates.MonthDay) ([]*entity.Person, error)
	getByAudience func(ctx context.Context, audience entity.AudienceType, value string) ([]*entity.Person, error)
}

func (f *fakePersonRepo) Upsert(ctx context.Context, p *entity.Person) error {
	return f.upsert(ctx, p)
}

func (f *fakePersonRepo) GetByID(ctx context.Context, id string) (*entity.Person, error) {
	return f.getByID(ctx, id)
}

func (f *fakePersonRepo) GetAll(ctx context.Context) ([]*entity.Person, error) {
	return f.getAll(ctx)
}

func (f *fakePersonRepo) GetByMonthDay(ctx context.Context, days []dates.MonthDay) ([]*entity.Person, error) {
	return f.getByMonthDay(ctx, days)
}

func (f *fakePersonRepo) GetByAudience(ctx context.Context, audience entity.AudienceType, value string) ([]*entity.Person, error) {
	return f.getByAudience(ctx, audience, value)
}

type fakeTaskRepo struct {
	getByDueRange func(ctx context.Context, start, end dates.Date) ([]*entity.Task, error)
	upsertBatch   func(ctx context.Context, tasks []*entity.Task) error
}

func (f *fakeTaskRepo) GetByDueRange(ctx context.Context, start, end dates.Date) ([]*entity.Task, error) {
	return f.getByDueRange(ctx, start, end)
}

func (f *fakeTaskRepo) UpsertBatch(ctx context.Context, tasks []*entity.Task) error {
	return f.upsertBatch(ctx, tasks)
}

// memNotificationRepo keeps notifications in memory keyed by id.
type memNotificationRepo struct {
	mu        sync.Mutex
	items     map[string]*entity.ScheduledNotification
	upserts   int
	upsertErr error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{items: make(map[string]*entity.ScheduledNotification)}
}

func (m *memNotificationRepo) UpsertBatch(_ context.Context, ns []*entity.ScheduledNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	for _, n := range ns {
		cp := *n
		if old, ok := m.items[n.ID]; ok {
			cp.Sent, cp.SentAt, cp.TokenFound, cp.RetryCount = old.Sent, old.SentAt, old.TokenFound, old.RetryCount
		}
		m.items[n.ID] = &cp
	}
	return nil
}

func (m *memNotificationRepo) GetDue(_ context.Context, now time.Time, limit int) ([]*entity.ScheduledNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ScheduledNotification
	for _, n := range m.items {
		if !n.Sent && !n.ScheduledFor.After(now) && len(out) < limit {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkSent(_ context.Context, id string, sentAt time.Time, tokenFound bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return entity.ErrNotificationNotFound
	}
	n.Sent = true
	n.SentAt = &sentAt
	n.TokenFound = &tokenFound
	n.Error = errMsg
	return nil
}

func (m *memNotificationRepo) IncrementRetry(_ context.Context, id string, errMsg string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.items[id]
	if !ok {
		return 0, entity.ErrNotificationNotFound
	}
	n.RetryCount++
	n.Error = errMsg
	return n.RetryCount, nil
}

func (m *memNotificationRepo) get(id string) *entity.ScheduledNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memNotificationRepo) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type fakeSettingsRepo struct {
	get func(ctx context.Context, id string) (*entity.Settings, error)
}

func (f *fakeSettingsRepo) Get(ctx context.Context, id string) (*entity.Settings, error) {
	return f.get(ctx, id)
}

func (f *fakeSettingsRepo) Save(context.Context, *entity.Settings) error {
	return nil
}

type fakeUserRepo struct {
	findByRole     func(ctx context.Context, role string) (*entity.User, error)
	getDeviceToken func(ctx context.Context, id string) (string, error)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	return &entity.User{ID: id}, nil
}

func (f *fakeUserRepo) FindByRole(ctx context.Context, role string) (*entity.User, error) {
	return f.findByRole(ctx, role)
}

func (f *fakeUserRepo) GetDeviceToken(ctx context.Context, id string) (string, error) {
	return f.getDeviceToken(ctx, id)
}

type fakeBroadcastRepo struct {
	mu      sync.Mutex
	created []*entity.BroadcastEvent
}

func (f *fakeBroadcastRepo) Create(_ context.Context, e *entity.BroadcastEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, e)
	return nil
}

func (f *fakeBroadcastRepo) GetByID(_ context.Context, id string) (*entity.BroadcastEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.created {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, entity.ErrBroadcastNotFound
}

type fakeSender struct {
	sendPush func(ctx context.Context, token, title, body string) (string, error)
	sendSMS  func(ctx context.Context, mobile, message string) (bool, error)
}

func (f *fakeSender) SendPush(ctx context.Context, token, title, body string) (string, error) {
	return f.sendPush(ctx, token, title, body)
}

func (f *fakeSender) SendSMS(ctx context.Context, mobile, message string) (bool, error) {
	return f.sendSMS(ctx, mobile, message)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches []*BroadcastBatch
	failAt  int // index of the first batch to reject; -1 never
}

func (f *fakePublisher) PublishBroadcastBatch(_ context.Context, b *BroadcastBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt >= 0 && b.Index >= f.failAt {
		return entity.ErrQueueUnavailable
	}
	f.batches = append(f.batches, b)
	return nil
}
