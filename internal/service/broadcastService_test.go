package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

// manualClock is advanced explicitly by tests; safe for concurrent use.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// smsRecorder records every SMS and fails for mobiles in fail.
type smsRecorder struct {
	mu     sync.Mutex
	sent   []string
	fail   map[string]bool
	pushes []string
	onSend func()
}

func (r *smsRecorder) sender() *fakeSender {
	return &fakeSender{
		sendSMS: func(_ context.Context, mobile, message string) (bool, error) {
			if r.onSend != nil {
				r.onSend()
			}
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.fail[mobile] {
				return false, errors.New("gateway rejected")
			}
			r.sent = append(r.sent, mobile)
			return true, nil
		},
		sendPush: func(_ context.Context, token, title, body string) (string, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.pushes = append(r.pushes, title+"|"+body)
			return "msg-1", nil
		},
	}
}

func mobiles(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("90000000%02d", i)
	}
	return out
}

func recipients(ms ...string) []entity.Recipient {
	out := make([]entity.Recipient, 0, len(ms))
	for i, m := range ms {
		out = append(out, entity.Recipient{PersonID: fmt.Sprintf("p%d", i), Name: "Person", Mobile: m})
	}
	return out
}

type broadcastFixture struct {
	clock         *manualClock
	sms           *smsRecorder
	notifications *memNotificationRepo
	broadcasts    *fakeBroadcastRepo
	persons       *fakePersonRepo
	users         *fakeUserRepo
	limits        DispatchLimits
	queue         BatchPublisher
}

func newBroadcastFixture() *broadcastFixture {
	return &broadcastFixture{
		clock:         &manualClock{now: dates.At(dates.MustDate(2024, time.March, 10), 9, 0, kolkata)},
		sms:           &smsRecorder{fail: map[string]bool{}},
		notifications: newMemNotificationRepo(),
		broadcasts:    &fakeBroadcastRepo{},
		persons:       &fakePersonRepo{},
		users: &fakeUserRepo{getDeviceToken: func(context.Context, string) (string, error) {
			return "creator-device-token", nil
		}},
		limits: DispatchLimits{
			BatchSize:      2,
			Concurrency:    2,
			TimeBudget:     50 * time.Second,
			QueueThreshold: 500,
			QueueBatchSize: 2,
			Language:       entity.LanguageEnglish,
			EveningHour:    20,
			Location:       kolkata,
		},
	}
}

func (f *broadcastFixture) build() BroadcastService {
	return NewBroadcastService(f.broadcasts, f.persons, f.users, f.notifications,
		f.sms.sender(), f.queue, f.clock, f.limits)
}

func townHall(ms ...string) *entity.BroadcastEvent {
	return &entity.BroadcastEvent{
		ID:           "ev1",
		Title:        "Town hall",
		ScheduledAt:  dates.At(dates.MustDate(2024, time.March, 12), 11, 0, kolkata),
		DialNumber:   "1800123",
		AccessCode:   "4455",
		Language:     entity.LanguageEnglish,
		Recipients:   recipients(ms...),
		CreatorID:    "creator1",
		CreatorToken: "creator-device-token",
	}
}

func TestSendDirect_MixedResults(t *testing.T) {
	f := newBroadcastFixture()
	list := mobiles(5)
	f.sms.fail[list[3]] = true
	s := f.build()

	res, err := s.SendDirect(context.Background(), "ev1", list, "hello")
	require.NoError(t, err)

	assert.Equal(t, entity.DispatchDirect, res.Mode)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 3, res.Batches)
	assert.False(t, res.Partial)
}

func TestSendDirect_AllFailed(t *testing.T) {
	f := newBroadcastFixture()
	list := mobiles(3)
	for _, m := range list {
		f.sms.fail[m] = true
	}
	s := f.build()

	res, err := s.SendDirect(context.Background(), "ev1", list, "hello")
	assert.ErrorIs(t, err, entity.ErrAllSendsFailed)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 0, res.Sent)
}

func TestSendDirect_NoRecipients(t *testing.T) {
	s := newBroadcastFixture().build()

	res, err := s.SendDirect(context.Background(), "ev1", nil, "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 0, res.Batches)
}

func TestSendDirect_TimeBudget(t *testing.T) {
	f := newBroadcastFixture()
	f.sms.onSend = func() { f.clock.Advance(20 * time.Second) }
	s := f.build()

	res, err := s.SendDirect(context.Background(), "ev1", mobiles(10), "hello")
	require.NoError(t, err)

	// two batches of two cost 80s; the third batch starts past the 50s budget
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Sent)
	assert.Equal(t, 2, res.Batches)
	assert.Equal(t, 6, res.Remaining)
}

func TestSendDirect_CancelledContext(t *testing.T) {
	s := newBroadcastFixture().build()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.SendDirect(ctx, "ev1", mobiles(4), "hello")
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 4, res.Remaining)
}

func TestOnEventCreated_Direct(t *testing.T) {
	f := newBroadcastFixture()
	s := f.build()

	event := townHall("9000000001", "", "  ", "9000000002")
	res, err := s.OnEventCreated(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, entity.DispatchDirect, res.Mode)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Sent)
	assert.ElementsMatch(t, []string{"9000000001", "9000000002"}, f.sms.sent)

	evening := f.notifications.get("evening_reminder_ev1_creator1")
	require.NotNil(t, evening)
	assert.Equal(t, "Reminder: Town hall", evening.Title)
	assert.Equal(t, "ev1", evening.EventID)
	assert.True(t, evening.ScheduledFor.Equal(dates.At(dates.MustDate(2024, time.March, 11), 20, 0, kolkata)))

	tenMin := f.notifications.get("ten_min_reminder_ev1_creator1")
	require.NotNil(t, tenMin)
	assert.Equal(t, "Starting Soon: Town hall", tenMin.Title)
	assert.True(t, tenMin.ScheduledFor.Equal(dates.At(dates.MustDate(2024, time.March, 12), 10, 50, kolkata)))

	require.Len(t, f.sms.pushes, 1)
	assert.Equal(t, `Meeting Scheduled|You scheduled "Town hall" for 12 Mar 2024, 11:00 AM`, f.sms.pushes[0])
}

func TestOnEventCreated_PastRemindersSkipped(t *testing.T) {
	f := newBroadcastFixture()
	s := f.build()

	event := townHall("9000000001")
	event.ScheduledAt = f.clock.Now().Add(5 * time.Minute)

	_, err := s.OnEventCreated(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, f.notifications.len())
}

func TestOnEventCreated_ReminderStoreFailure(t *testing.T) {
	f := newBroadcastFixture()
	f.notifications.upsertErr = errors.New("connection refused")
	s := f.build()

	_, err := s.OnEventCreated(context.Background(), townHall("9000000001"))
	assert.Error(t, err)
	assert.Empty(t, f.sms.sent)
}

func TestOnEventCreated_NoCreatorToken(t *testing.T) {
	f := newBroadcastFixture()
	s := f.build()

	event := townHall("9000000001")
	event.CreatorToken = ""

	res, err := s.OnEventCreated(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Empty(t, f.sms.pushes)
}

func TestOnEventCreated_RecipientCap(t *testing.T) {
	f := newBroadcastFixture()
	f.limits.MaxRecipients = 2
	s := f.build()

	res, err := s.OnEventCreated(context.Background(), townHall(mobiles(4)...))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Len(t, f.sms.sent, 2)
}

func TestOnEventCreated_Queued(t *testing.T) {
	f := newBroadcastFixture()
	f.limits.QueueThreshold = 3
	pub := &fakePublisher{failAt: -1}
	f.queue = pub
	s := f.build()

	res, err := s.OnEventCreated(context.Background(), townHall(mobiles(5)...))
	require.NoError(t, err)

	assert.Equal(t, entity.DispatchQueued, res.Mode)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Queued)
	assert.Equal(t, 3, res.Batches)
	assert.Empty(t, f.sms.sent)

	require.Len(t, pub.batches, 3)
	assert.Equal(t, []string{"9000000004"}, pub.batches[2].Mobiles)
	assert.Equal(t, "Please join the conference call. Dial: 1800123, Code: 4455", pub.batches[0].Message)
}

func TestOnEventCreated_QueueFailureFallsBackToDirect(t *testing.T) {
	f := newBroadcastFixture()
	f.limits.QueueThreshold = 3
	f.limits.BatchSize = 10
	pub := &fakePublisher{failAt: 1}
	f.queue = pub
	s := f.build()

	list := mobiles(5)
	res, err := s.OnEventCreated(context.Background(), townHall(list...))
	require.NoError(t, err)

	assert.Equal(t, entity.DispatchDirect, res.Mode)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Queued)
	assert.Equal(t, 3, res.Sent)
	assert.ElementsMatch(t, list[2:], f.sms.sent)
}

func TestOnEventCreated_BelowThresholdIgnoresQueue(t *testing.T) {
	f := newBroadcastFixture()
	pub := &fakePublisher{failAt: -1}
	f.queue = pub
	s := f.build()

	res, err := s.OnEventCreated(context.Background(), townHall(mobiles(3)...))
	require.NoError(t, err)
	assert.Equal(t, entity.DispatchDirect, res.Mode)
	assert.Empty(t, pub.batches)
}

func TestCreateBroadcast(t *testing.T) {
	t.Run("audience", func(t *testing.T) {
		f := newBroadcastFixture()
		f.persons.getByAudience = func(_ context.Context, audience entity.AudienceType, value string) ([]*entity.Person, error) {
			assert.Equal(t, entity.AudienceBlock, audience)
			assert.Equal(t, "B1", value)
			return []*entity.Person{person("a", "Asha", "", ""), person("b", "Bikash", "", "")}, nil
		}
		s := f.build()

		event, err := s.CreateBroadcast(context.Background(), &CreateBroadcastRequest{
			Title:         "Town hall",
			ScheduledAt:   time.Date(2024, time.March, 12, 5, 30, 0, 0, time.UTC),
			Audience:      entity.AudienceBlock,
			AudienceValue: "B1",
			CreatorID:     "creator1",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, event.ID)
		assert.Len(t, event.Recipients, 2)
		assert.Equal(t, entity.LanguageEnglish, event.Language)
		assert.Equal(t, "creator-device-token", event.CreatorToken)
		require.Len(t, f.broadcasts.created, 1)
	})

	t.Run("token lookup failure is not fatal", func(t *testing.T) {
		f := newBroadcastFixture()
		f.users.getDeviceToken = func(context.Context, string) (string, error) {
			return "", entity.ErrUserNotFound
		}
		s := f.build()

		event, err := s.CreateBroadcast(context.Background(), &CreateBroadcastRequest{
			Title:       "Town hall",
			ScheduledAt: time.Now(),
			Recipients:  recipients("9000000001"),
			CreatorID:   "creator1",
		})
		require.NoError(t, err)
		assert.Empty(t, event.CreatorToken)
	})

	t.Run("invalid", func(t *testing.T) {
		s := newBroadcastFixture().build()
		_, err := s.CreateBroadcast(context.Background(), &CreateBroadcastRequest{Title: " ", CreatorID: "c"})
		assert.ErrorIs(t, err, entity.ErrInvalidBroadcast)
	})
}
