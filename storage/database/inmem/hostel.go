package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

var errDuplicateID = errors.New("a record with this id already exists")

type hostelRepository struct {
	db *DB
}

var _ hostel.Repository = (*hostelRepository)(nil)

func NewHostelRepository(db *DB) hostel.Repository {
	return &hostelRepository{db: db}
}

func copyRoom(r *hostel.Room) hostel.Room {
	cp := *r
	cp.Occupants = copyStrings(r.Occupants)
	cp.Features = copyStrings(r.Features)
	return cp
}

func copyStudent(s *hostel.Student) hostel.Student {
	cp := *s
	cp.RoomID = copyStringPtr(s.RoomID)
	return cp
}

// Rooms

func (repo *hostelRepository) CreateRoom(ctx context.Context, room hostel.Room) (hostel.Room, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.rooms[room.ID]; ok {
		return hostel.Room{}, errDuplicateID
	}
	room.ID = repo.db.newID(room.ID)
	stored := copyRoom(&room)
	repo.db.rooms[room.ID] = &stored
	return copyRoom(&stored), nil
}

func (repo *hostelRepository) QueryRooms(ctx context.Context) ([]hostel.Room, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rooms := make([]hostel.Room, 0, len(repo.db.rooms))
	for _, r := range repo.db.rooms {
		rooms = append(rooms, copyRoom(r))
	}
	sort.Slice(rooms, func(i, j int) bool { return repo.db.less(rooms[i].ID, rooms[j].ID) })
	return rooms, nil
}

func (repo *hostelRepository) GetRoom(ctx context.Context, id string) (hostel.Room, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if r, ok := repo.db.rooms[id]; ok {
		return copyRoom(r), nil
	}
	return hostel.Room{}, hostel.ErrRoomNotFound
}

// Students

func (repo *hostelRepository) CreateStudent(ctx context.Context, std hostel.Student) (hostel.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[std.ID]; ok {
		return hostel.Student{}, errDuplicateID
	}
	for _, s := range repo.db.students {
		if s.Email == std.Email {
			return hostel.Student{}, hostel.ErrStudentEmailExists
		}
	}
	std.ID = repo.db.newID(std.ID)
	stored := copyStudent(&std)
	repo.db.students[std.ID] = &stored
	return copyStudent(&stored), nil
}

func (repo *hostelRepository) QueryStudents(ctx context.Context, filter hostel.StudentFilter) ([]hostel.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]hostel.Student, 0)
	for _, s := range repo.db.students {
		if filter.Email != "" && s.Email != filter.Email {
			continue
		}
		if filter.Unallocated && s.RoomID != nil {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(s.Name), filter.Search) &&
			!strings.Contains(strings.ToLower(s.ID), filter.Search) {
			continue
		}
		students = append(students, copyStudent(s))
	}
	sort.Slice(students, func(i, j int) bool { return repo.db.less(students[i].ID, students[j].ID) })
	return students, nil
}

func (repo *hostelRepository) GetStudent(ctx context.Context, id string) (hostel.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.students[id]; ok {
		return copyStudent(s), nil
	}
	return hostel.Student{}, hostel.ErrStudentNotFound
}

func (repo *hostelRepository) UpdateStudentProfile(ctx context.Context, id string, up hostel.UpdateProfile) (hostel.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.students[id]
	if !ok {
		return hostel.Student{}, hostel.ErrStudentNotFound
	}
	if up.Course != nil {
		s.Course = *up.Course
	}
	if up.Year != nil {
		s.Year = *up.Year
	}
	if up.PhoneNumber != nil {
		s.PhoneNumber = *up.PhoneNumber
	}
	if up.ParentPhoneNumber != nil {
		s.ParentPhoneNumber = *up.ParentPhoneNumber
	}
	return copyStudent(s), nil
}

func (repo *hostelRepository) SetPaidFees(ctx context.Context, id string, paid int64) (hostel.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	s, ok := repo.db.students[id]
	if !ok {
		return hostel.Student{}, hostel.ErrStudentNotFound
	}
	s.PaidFees = paid
	return copyStudent(s), nil
}

func (repo *hostelRepository) DeleteStudent(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return hostel.ErrStudentNotFound
	}
	for _, r := range repo.db.rooms {
		r.Occupants = removeString(r.Occupants, id)
	}
	for _, u := range repo.db.users {
		if u.StudentID != nil && *u.StudentID == id {
			u.StudentID = nil
		}
	}
	delete(repo.db.students, id)
	delete(repo.db.order, id)
	return nil
}

// Allocation

func (repo *hostelRepository) Allocate(ctx context.Context, roomID, studentID string) (hostel.Room, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.rooms[roomID]
	if !ok {
		return hostel.Room{}, hostel.ErrRoomNotFound
	}
	s, ok := repo.db.students[studentID]
	if !ok {
		return hostel.Room{}, hostel.ErrStudentNotFound
	}
	if s.RoomID != nil {
		return hostel.Room{}, hostel.ErrAlreadyAllocated
	}
	if r.IsFull() {
		return hostel.Room{}, hostel.ErrCapacityExceeded
	}

	r.Occupants = append(r.Occupants, studentID)
	s.RoomID = &r.ID
	s.RoomNumber = r.Number
	return copyRoom(r), nil
}

func (repo *hostelRepository) Deallocate(ctx context.Context, roomID, studentID string) (hostel.Room, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	r, ok := repo.db.rooms[roomID]
	if !ok {
		return hostel.Room{}, hostel.ErrRoomNotFound
	}
	r.Occupants = removeString(r.Occupants, studentID)
	if s, ok := repo.db.students[studentID]; ok && s.RoomID != nil && *s.RoomID == roomID {
		s.RoomID = nil
		s.RoomNumber = ""
	}
	return copyRoom(r), nil
}

func removeString(ss []string, s string) []string {
	kept := ss[:0]
	for _, v := range ss {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}

// Grievances

func (repo *hostelRepository) CreateGrievance(ctx context.Context, g hostel.Grievance) (hostel.Grievance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.grievances[g.ID]; ok {
		return hostel.Grievance{}, errDuplicateID
	}
	g.ID = repo.db.newID(g.ID)
	stored := g
	repo.db.grievances[g.ID] = &stored
	return stored, nil
}

func (repo *hostelRepository) QueryGrievances(ctx context.Context, filter hostel.GrievanceFilter) ([]hostel.Grievance, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	grievances := make([]hostel.Grievance, 0)
	for _, g := range repo.db.grievances {
		if filter.StudentID != "" && g.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && g.Status != filter.Status {
			continue
		}
		grievances = append(grievances, *g)
	}
	sort.Slice(grievances, func(i, j int) bool { return repo.db.less(grievances[i].ID, grievances[j].ID) })
	return grievances, nil
}

func (repo *hostelRepository) UpdateGrievanceStatus(ctx context.Context, id, status string) (hostel.Grievance, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	g, ok := repo.db.grievances[id]
	if !ok {
		return hostel.Grievance{}, hostel.ErrGrievanceNotFound
	}
	g.Status = status
	return *g, nil
}

// Notices

func (repo *hostelRepository) CreateNotice(ctx context.Context, n hostel.Notice) (hostel.Notice, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notices[n.ID]; ok {
		return hostel.Notice{}, errDuplicateID
	}
	n.ID = repo.db.newID(n.ID)
	stored := n
	repo.db.notices[n.ID] = &stored
	return stored, nil
}

func (repo *hostelRepository) QueryNotices(ctx context.Context) ([]hostel.Notice, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notices := make([]hostel.Notice, 0, len(repo.db.notices))
	for _, n := range repo.db.notices {
		notices = append(notices, *n)
	}
	sort.Slice(notices, func(i, j int) bool { return repo.db.less(notices[i].ID, notices[j].ID) })
	return notices, nil
}

func (repo *hostelRepository) DeleteNotice(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.notices[id]; !ok {
		return hostel.ErrNoticeNotFound
	}
	delete(repo.db.notices, id)
	delete(repo.db.order, id)
	return nil
}

// Leave requests

func (repo *hostelRepository) CreateLeaveRequest(ctx context.Context, l hostel.LeaveRequest) (hostel.LeaveRequest, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.leaves[l.ID]; ok {
		return hostel.LeaveRequest{}, errDuplicateID
	}
	l.ID = repo.db.newID(l.ID)
	stored := l
	repo.db.leaves[l.ID] = &stored
	return stored, nil
}

func (repo *hostelRepository) QueryLeaveRequests(ctx context.Context, filter hostel.LeaveFilter) ([]hostel.LeaveRequest, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	leaves := make([]hostel.LeaveRequest, 0)
	for _, l := range repo.db.leaves {
		if filter.StudentID != "" && l.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		leaves = append(leaves, *l)
	}
	sort.Slice(leaves, func(i, j int) bool { return repo.db.less(leaves[i].ID, leaves[j].ID) })
	return leaves, nil
}

func (repo *hostelRepository) UpdateLeaveStatus(ctx context.Context, id, status string) (hostel.LeaveRequest, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	l, ok := repo.db.leaves[id]
	if !ok {
		return hostel.LeaveRequest{}, hostel.ErrLeaveRequestNotFound
	}
	l.Status = status
	return *l, nil
}
