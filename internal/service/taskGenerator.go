package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

// TaskGenerator turns roster dates into follow-up tasks. It does no I/O and
// keeps no state between calls, so one instance can serve concurrent scans.
type TaskGenerator struct {
	clock dates.Clock
	loc   *time.Location
	newID func() string
}

func NewTaskGenerator(clock dates.Clock, loc *time.Location) *TaskGenerator {
	return &TaskGenerator{
		clock: clock,
		loc:   loc,
		newID: uuid.NewString,
	}
}

// ScanNarrow checks today and tomorrow in the civil timezone.
func (g *TaskGenerator) ScanNarrow(roster []*entity.Person, existing []*entity.Task) *entity.GenerationResult {
	today := dates.Today(g.clock, g.loc)
	tomorrow := today.AddDays(1)

	c := g.newCollector(existing, today, tomorrow)
	byDay := c.index(roster)
	for _, day := range []dates.Date{today, tomorrow} {
		for _, ev := range byDay[day.MonthDay()] {
			c.offer(ev.person, ev.typ, day)
		}
	}

	return c.result()
}

// ScanRange checks every day in [start, end]. Ranges may cross a year boundary.
func (g *TaskGenerator) ScanRange(roster []*entity.Person, existing []*entity.Task, start, end dates.Date) (*entity.GenerationResult, error) {
	if end.Before(start) {
		return nil, entity.ErrInvalidDateRange
	}

	c := g.newCollector(existing, start, end)

	byDay := c.index(roster)
	for _, day := range dates.Days(start, end) {
		for _, ev := range byDay[day.MonthDay()] {
			c.offer(ev.person, ev.typ, day)
		}
	}

	return c.result(), nil
}

// collector accumulates one scan's output and its dedup set.
type collector struct {
	g    *TaskGenerator
	seen map[string]struct{}
	now  time.Time
	res  *entity.GenerationResult
}

func (g *TaskGenerator) newCollector(existing []*entity.Task, start, end dates.Date) *collector {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		if t == nil {
			continue
		}
		due, err := t.DueDate.Normalize(g.loc)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"task_id":  t.ID,
				"due_date": t.DueDate.String(),
			}).Warn("existing task has unusable due date, ignored for dedup")
			continue
		}
		seen[entity.TaskKey(t.PersonID, t.Type, due)] = struct{}{}
	}

	return &collector{
		g:    g,
		seen: seen,
		now:  g.clock.Now(),
		res: &entity.GenerationResult{
			NewTasks:  []*entity.Task{},
			DateRange: entity.DateRange{Start: start, End: end},
			Errors:    []entity.RecordError{},
		},
	}
}

type dayEvent struct {
	person *entity.Person
	typ    entity.TaskType
}

// index parses each person once and groups their events by month/day.
// Within a day, events keep roster order with the birthday first.
func (c *collector) index(roster []*entity.Person) map[dates.MonthDay][]dayEvent {
	byDay := make(map[dates.MonthDay][]dayEvent)
	for _, p := range roster {
		if p == nil {
			continue
		}
		if md, ok := c.parse(p, "dob", p.Dob); ok {
			byDay[md] = append(byDay[md], dayEvent{person: p, typ: entity.TaskBirthday})
		}
		if md, ok := c.parse(p, "anniversary", p.Anniversary); ok {
			byDay[md] = append(byDay[md], dayEvent{person: p, typ: entity.TaskAnniversary})
		}
	}
	return byDay
}

// parse returns the recurring month/day of one field. Malformed values are
// recorded as record errors; absent ones are not.
func (c *collector) parse(p *entity.Person, field string, v dates.Value) (dates.MonthDay, bool) {
	md, err := dates.ParseRecurring(v, c.g.loc)
	if err == nil {
		return md, true
	}
	if !errors.Is(err, dates.ErrAbsent) {
		logrus.WithFields(logrus.Fields{
			"person_id": p.ID,
			"field":     field,
			"value":     v.String(),
		}).Warnf("skipping invalid date: %v", err)
		c.res.Errors = append(c.res.Errors, entity.RecordError{
			PersonID: p.ID,
			Field:    field,
			Value:    v.String(),
			Reason:   err.Error(),
		})
	}
	return dates.MonthDay{}, false
}

func (c *collector) offer(p *entity.Person, typ entity.TaskType, due dates.Date) {
	key := entity.TaskKey(p.ID, typ, due)
	if _, dup := c.seen[key]; dup {
		c.res.SkippedDuplicates++
		return
	}
	c.seen[key] = struct{}{}

	c.res.NewTasks = append(c.res.NewTasks, &entity.Task{
		ID:            c.g.newID(),
		PersonID:      p.ID,
		Name:          p.Name,
		Mobile:        p.Mobile,
		Ward:          p.Ward,
		Block:         p.Block,
		GramPanchayat: p.GramPanchayat,
		Type:          typ,
		DueDate:       dates.Civil(due),
		Status:        entity.TaskPending,
		CreatedAt:     c.now,
	})

	switch typ {
	case entity.TaskBirthday:
		c.res.BirthdayCount++
	case entity.TaskAnniversary:
		c.res.AnniversaryCount++
	}
}

func (c *collector) result() *entity.GenerationResult {
	c.res.Count = len(c.res.NewTasks)
	return c.res
}
