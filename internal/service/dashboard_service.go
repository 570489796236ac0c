package service

import (
	"context"
	"time"

	"familysync/internal/models"
	"familysync/internal/repository"
)

const dashboardItemLimit = 5

// Dashboard is the home screen summary for one member
type Dashboard struct {
	Greeting      string                    `json:"greeting"`
	Member        models.MemberSummary      `json:"member"`
	Family        *models.Family            `json:"family"`
	Members       []models.Member           `json:"members"`
	TodayEvents   []models.EventWithCreator `json:"today_events"`
	UpcomingTasks []models.TaskWithAssignee `json:"upcoming_tasks"`
}

// DashboardService assembles the home screen
type DashboardService struct {
	calendar   *CalendarService
	tasks      *TaskService
	memberRepo *repository.MemberRepository
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(calendar *CalendarService, tasks *TaskService, memberRepo *repository.MemberRepository) *DashboardService {
	return &DashboardService{
		calendar:   calendar,
		tasks:      tasks,
		memberRepo: memberRepo,
	}
}

// Greeting picks a salutation for the family-local hour of now
func Greeting(now time.Time, loc *time.Location) string {
	hour := now.In(loc).Hour()
	switch {
	case hour < 12:
		return "Good morning"
	case hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// Summary returns today's events, the next open tasks and the family's members
func (s *DashboardService) Summary(ctx context.Context, identity *models.Identity, now time.Time) (*Dashboard, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	events, err := s.calendar.TodayEvents(ctx, identity, now, dashboardItemLimit)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tasks.UpcomingTasks(ctx, identity, dashboardItemLimit)
	if err != nil {
		return nil, err
	}
	members, err := s.memberRepo.ListFamilyMembers(ctx, familyID)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Greeting:      Greeting(now, identity.Family.Location()),
		Member:        identity.Member.Summary(),
		Family:        identity.Family,
		Members:       members,
		TodayEvents:   events,
		UpcomingTasks: tasks,
	}, nil
}
