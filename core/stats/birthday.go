package stats

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/hostel/core/hostel"
)

// BirthdaysOn returns the students whose date of birth falls on the month and day of `day`.
func BirthdaysOn(students []hostel.Student, day time.Time) []hostel.Student {
	md := day.Format("01-02")
	found := make([]hostel.Student, 0)
	for _, s := range students {
		if len(s.DOB) == len(hostel.DateLayout) && s.DOB[5:] == md {
			found = append(found, s)
		}
	}
	return found
}

// BirthdayTracker emits a birthday notification once per distinct set of names.
type BirthdayTracker struct {
	mu   sync.Mutex
	last string
}

func NewBirthdayTracker() *BirthdayTracker {
	return &BirthdayTracker{}
}

// Check returns today's birthdays, or nil when there are none
// or when the same set of names was already returned.
func (bt *BirthdayTracker) Check(students []hostel.Student, today time.Time) []hostel.Student {
	found := BirthdaysOn(students, today)
	if len(found) == 0 {
		return nil
	}

	names := make([]string, 0, len(found))
	for _, s := range found {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	key := strings.Join(names, ", ")

	bt.mu.Lock()
	defer bt.mu.Unlock()
	if key == bt.last {
		return nil
	}
	bt.last = key
	return found
}
