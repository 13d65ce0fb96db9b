// Package inmemdb is a process-local entity store. Every table lives behind a single lock,
// so operations spanning rooms, students and users are atomic.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/user"
)

type DB struct {
	mu sync.RWMutex

	rooms      map[string]*hostel.Room
	students   map[string]*hostel.Student
	grievances map[string]*hostel.Grievance
	notices    map[string]*hostel.Notice
	leaves     map[string]*hostel.LeaveRequest
	users      map[string]*user.User

	// insertion order, for stable listings
	order map[string]int
	seq   int
}

func Open() *DB {
	return &DB{
		rooms:      make(map[string]*hostel.Room),
		students:   make(map[string]*hostel.Student),
		grievances: make(map[string]*hostel.Grievance),
		notices:    make(map[string]*hostel.Notice),
		leaves:     make(map[string]*hostel.LeaveRequest),
		users:      make(map[string]*user.User),
		order:      make(map[string]int),
	}
}

// Ping always succeeds while ctx is live.
func (db *DB) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Reset drops every record.
func (db *DB) Reset() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rooms = fresh.rooms
	db.students = fresh.students
	db.grievances = fresh.grievances
	db.notices = fresh.notices
	db.leaves = fresh.leaves
	db.users = fresh.users
	db.order = fresh.order
	db.seq = 0
}

// newID returns id, or a fresh one when empty, and records its insertion rank. Callers hold the write lock.
func (db *DB) newID(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	db.seq++
	db.order[id] = db.seq
	return id
}

func (db *DB) less(a, b string) bool {
	return db.order[a] < db.order[b]
}

func copyStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	cp := make([]string, len(ss))
	copy(cp, ss)
	return cp
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
