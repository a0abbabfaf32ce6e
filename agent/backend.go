package agent

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BusyBlock is one occupied stretch on a calendar day.
type BusyBlock struct {
	Title string `json:"title"`
	Start string `json:"start"` // HH:MM
	End   string `json:"end"`   // HH:MM
}

// DaySchedule lists the busy blocks of a single day.
type DaySchedule struct {
	Date string      `json:"date"` // YYYY-MM-DD
	Busy []BusyBlock `json:"busy"`
}

// Event is a calendar event creation request. Events last 30 minutes.
type Event struct {
	Title       string `json:"title"`
	Date        string `json:"date"`       // YYYY-MM-DD
	StartTime   string `json:"start_time"` // HH:MM
	GuestEmail  string `json:"guest_email,omitempty"`
	Description string `json:"description,omitempty"`
}

// CreatedEvent reports a successfully created event.
type CreatedEvent struct {
	ID   string `json:"id"`
	Link string `json:"link,omitempty"`
}

// Calendar is the scheduling backend the agent's calendar tools call.
type Calendar interface {
	// BusySlots returns the occupied blocks for the next two weeks.
	BusySlots(ctx context.Context) ([]DaySchedule, error)
	CreateEvent(ctx context.Context, event Event) (*CreatedEvent, error)
}

// Student is a directory record.
type Student struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Career string `json:"career"`
}

// Enrollment ties a student to a course.
type Enrollment struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	Schedule   string `json:"schedule"`
	Grade      string `json:"grade,omitempty"`
}

// Loan is a library loan record.
type Loan struct {
	Title   string `json:"title"`
	DueDate string `json:"due_date"` // YYYY-MM-DD
	Status  string `json:"status"`
}

// StudentDirectory is the records backend the agent's student tools call.
type StudentDirectory interface {
	Student(ctx context.Context, id string) (*Student, error)
	Courses(ctx context.Context, id string) ([]Enrollment, error)
	LibraryLoans(ctx context.Context, id string) ([]Loan, error)
}

// MemoryCalendar is an in-process Calendar for tests and demos.
type MemoryCalendar struct {
	mu       sync.Mutex
	days     []DaySchedule
	events   []Event
	eventSeq int
}

func NewMemoryCalendar(days ...DaySchedule) *MemoryCalendar {
	return &MemoryCalendar{days: days}
}

func (c *MemoryCalendar) BusySlots(ctx context.Context) ([]DaySchedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DaySchedule(nil), c.days...), nil
}

func (c *MemoryCalendar) CreateEvent(ctx context.Context, event Event) (*CreatedEvent, error) {
	if _, err := time.Parse("2006-01-02", event.Date); err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", event.Date)
	}
	start, err := time.Parse("15:04", event.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q, expected HH:MM", event.StartTime)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventSeq++
	c.events = append(c.events, event)

	end := start.Add(30 * time.Minute)
	for i := range c.days {
		if c.days[i].Date == event.Date {
			c.days[i].Busy = append(c.days[i].Busy, BusyBlock{
				Title: event.Title,
				Start: event.StartTime,
				End:   end.Format("15:04"),
			})
		}
	}
	return &CreatedEvent{ID: fmt.Sprintf("evt-%d", c.eventSeq)}, nil
}

// Events returns the events created so far.
func (c *MemoryCalendar) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// MemoryDirectory is an in-process StudentDirectory backed by maps.
type MemoryDirectory struct {
	Students    map[string]Student
	Enrollments map[string][]Enrollment
	Loans       map[string][]Loan
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		Students:    map[string]Student{},
		Enrollments: map[string][]Enrollment{},
		Loans:       map[string][]Loan{},
	}
}

func (d *MemoryDirectory) Student(ctx context.Context, id string) (*Student, error) {
	s, ok := d.Students[id]
	if !ok {
		return nil, fmt.Errorf("no student found with id %q", id)
	}
	return &s, nil
}

func (d *MemoryDirectory) Courses(ctx context.Context, id string) ([]Enrollment, error) {
	if _, ok := d.Students[id]; !ok {
		return nil, fmt.Errorf("no student found with id %q", id)
	}
	return d.Enrollments[id], nil
}

func (d *MemoryDirectory) LibraryLoans(ctx context.Context, id string) ([]Loan, error) {
	if _, ok := d.Students[id]; !ok {
		return nil, fmt.Errorf("no student found with id %q", id)
	}
	return d.Loans[id], nil
}
