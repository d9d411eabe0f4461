package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/Kodanda10/iConnect-sub000/internal/database/postgres"
	"github.com/Kodanda10/iConnect-sub000/internal/dates"
	"github.com/Kodanda10/iConnect-sub000/internal/entity"
)

const (
	rosterIndexed = "indexed"
	rosterFull    = "full"
)

type scanService struct {
	personRepo   repository.PersonRepository
	taskRepo     repository.TaskRepository
	generator    *TaskGenerator
	scheduler    *NotificationScheduler
	clock        dates.Clock
	loc          *time.Location
	maxRangeDays int
}

func NewScanService(
	personRepo repository.PersonRepository,
	taskRepo repository.TaskRepository,
	generator *TaskGenerator,
	scheduler *NotificationScheduler,
	clock dates.Clock,
	loc *time.Location,
	maxRangeDays int,
) ScanService {
	return &scanService{
		personRepo:   personRepo,
		taskRepo:     taskRepo,
		generator:    generator,
		scheduler:    scheduler,
		clock:        clock,
		loc:          loc,
		maxRangeDays: maxRangeDays,
	}
}

func (s *scanService) RunDaily(ctx context.Context) (*DailyRunResult, error) {
	today := dates.Today(s.clock, s.loc)
	tomorrow := today.AddDays(1)

	roster, source, err := s.loadRoster(ctx, today, tomorrow)
	if err != nil {
		return nil, err
	}

	existing, err := s.taskRepo.GetByDueRange(ctx, today, tomorrow)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing tasks: %w", err)
	}

	tasks := s.generator.ScanNarrow(roster, existing)
	if err := s.taskRepo.UpsertBatch(ctx, tasks.NewTasks); err != nil {
		return nil, fmt.Errorf("failed to store tasks: %w", err)
	}

	alerts, err := s.scheduler.ScheduleDaily(ctx, roster)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"date":          today.String(),
		"roster":        len(roster),
		"roster_source": source,
		"new_tasks":     tasks.Count,
		"duplicates":    tasks.SkippedDuplicates,
	}).Info("daily scan completed")

	return &DailyRunResult{
		Date:          today,
		Tasks:         tasks,
		Notifications: alerts,
		RosterSource:  source,
	}, nil
}

// loadRoster reads only the persons indexed for the two days and falls back
// to the whole roster when the indexed query fails.
func (s *scanService) loadRoster(ctx context.Context, today, tomorrow dates.Date) ([]*entity.Person, string, error) {
	persons, err := s.personRepo.GetByMonthDay(ctx, []dates.MonthDay{today.MonthDay(), tomorrow.MonthDay()})
	if err == nil {
		return persons, rosterIndexed, nil
	}
	logrus.Warnf("indexed roster query failed, falling back to full scan: %v", err)

	persons, err = s.personRepo.GetAll(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load roster: %w", err)
	}
	return persons, rosterFull, nil
}

func (s *scanService) Backfill(ctx context.Context, start, end dates.Date) (*entity.GenerationResult, error) {
	if end.Before(start) {
		return nil, entity.ErrInvalidDateRange
	}
	if s.maxRangeDays > 0 && len(dates.Days(start, end)) > s.maxRangeDays {
		return nil, fmt.Errorf("%w: more than %d days", entity.ErrRangeTooLong, s.maxRangeDays)
	}

	roster, err := s.personRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	existing, err := s.taskRepo.GetByDueRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing tasks: %w", err)
	}

	res, err := s.generator.ScanRange(roster, existing, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpsertBatch(ctx, res.NewTasks); err != nil {
		return nil, fmt.Errorf("failed to store tasks: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"start":         start.String(),
		"end":           end.String(),
		"new_tasks":     res.Count,
		"birthdays":     res.BirthdayCount,
		"anniversaries": res.AnniversaryCount,
		"duplicates":    res.SkippedDuplicates,
		"errors":        len(res.Errors),
	}).Info("task backfill completed")

	return res, nil
}
