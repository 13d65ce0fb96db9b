// Package notify sends the scheduled greetings of the warden's office.
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/stats"
)

const birthdayTemplate = "birthday"

var nowFunc = time.Now // mockable

// StudentLister lists every student record.
type StudentLister interface {
	QueryStudents(ctx context.Context, filter hostel.StudentFilter) ([]hostel.Student, error)
}

// BirthdayJob mails a greeting to every student whose birthday is today, once per day.
type BirthdayJob struct {
	students StudentLister
	mailSvc  core.EmailService
	logger   core.Logger

	mu      sync.Mutex
	day     string
	tracker *stats.BirthdayTracker
}

func NewBirthdayJob(students StudentLister, mailSvc core.EmailService, logger core.Logger) *BirthdayJob {
	return &BirthdayJob{students: students, mailSvc: mailSvc, logger: logger}
}

// Run sends today's greetings and returns the number of messages sent.
func (j *BirthdayJob) Run(ctx context.Context) (int, error) {
	students, err := j.students.QueryStudents(ctx, hostel.StudentFilter{})
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}

	now := nowFunc()
	j.mu.Lock()
	if day := now.Format(hostel.DateLayout); day != j.day {
		j.day = day
		j.tracker = stats.NewBirthdayTracker()
	}
	tracker := j.tracker
	j.mu.Unlock()

	found := tracker.Check(students, now)
	messages := make([]*core.EmailMessage, 0, len(found))
	for _, s := range found {
		if s.Email == "" {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:      "Happy Birthday!",
			TemplateName: birthdayTemplate,
			TemplateData: s,
		})
	}
	if len(messages) > 0 {
		j.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}

// Schedule registers the job on the cron scheduler.
func (j *BirthdayJob) Schedule(c *cron.Cron, schedule string) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		n, err := j.Run(ctx)
		if err != nil {
			j.logger.Error(fmt.Sprintf("birthday job: %v", err), err)
			return
		}
		if n > 0 {
			j.logger.Info(fmt.Sprintf("birthday job: %d greeting(s) sent", n))
		}
	})
}
