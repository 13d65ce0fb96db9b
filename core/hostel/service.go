package hostel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
)

const defaultDOB = "2000-01-01"

var (
	nowFunc = time.Now // mockable

	// errors
	ErrRoomNotFound         = errors.New("room not found")
	ErrStudentNotFound      = errors.New("student not found")
	ErrGrievanceNotFound    = errors.New("grievance not found")
	ErrNoticeNotFound       = errors.New("notice not found")
	ErrLeaveRequestNotFound = errors.New("leave request not found")
	ErrCapacityExceeded     = errors.New("room is at full capacity")
	ErrAlreadyAllocated     = errors.New("student is already allocated to a room")
	ErrStudentEmailExists   = errors.New("a student with this email already exists")
)

type (
	// Repository is the entity store. Allocate, Deallocate, DeleteStudent and SetPaidFees
	// must each be applied atomically: either every record they touch is written, or none is.
	Repository interface {
		CreateRoom(ctx context.Context, room Room) (Room, error)
		QueryRooms(ctx context.Context) ([]Room, error)
		GetRoom(ctx context.Context, id string) (Room, error)

		CreateStudent(ctx context.Context, student Student) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		UpdateStudentProfile(ctx context.Context, id string, up UpdateProfile) (Student, error)
		SetPaidFees(ctx context.Context, id string, paid int64) (Student, error)
		// DeleteStudent removes the student from whichever room currently lists it
		// (read from the store, not from the caller) and unlinks any identity pointing to it.
		DeleteStudent(ctx context.Context, id string) error

		// Allocate fails with ErrAlreadyAllocated or ErrCapacityExceeded, in that order of precedence.
		Allocate(ctx context.Context, roomID, studentID string) (Room, error)
		// Deallocate is a no-op on the room when the student is not listed, but still clears
		// the student's room when it points at roomID.
		Deallocate(ctx context.Context, roomID, studentID string) (Room, error)

		CreateGrievance(ctx context.Context, g Grievance) (Grievance, error)
		QueryGrievances(ctx context.Context, filter GrievanceFilter) ([]Grievance, error)
		UpdateGrievanceStatus(ctx context.Context, id, status string) (Grievance, error)

		CreateNotice(ctx context.Context, n Notice) (Notice, error)
		QueryNotices(ctx context.Context) ([]Notice, error)
		DeleteNotice(ctx context.Context, id string) error

		CreateLeaveRequest(ctx context.Context, l LeaveRequest) (LeaveRequest, error)
		QueryLeaveRequests(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)
		UpdateLeaveStatus(ctx context.Context, id, status string) (LeaveRequest, error)
	}

	// Publisher pushes the full, current content of a collection to its subscribers.
	Publisher interface {
		Publish(collection string, items interface{})
	}

	// Snapshot is the current content of every collection.
	Snapshot struct {
		Rooms         []Room
		Students      []Student
		Grievances    []Grievance
		Notices       []Notice
		LeaveRequests []LeaveRequest
	}

	Service struct {
		repo       Repository
		classifier Classifier
		publisher  Publisher
		logger     core.Logger
		conf       *core.Config

		// held from reading a collection until its snapshot is published,
		// so snapshots reach the feed in the order they were read
		publishMu map[string]*sync.Mutex
	}
)

func NewService(conf *core.Config, repo Repository, classifier Classifier, publisher Publisher, logger core.Logger) *Service {
	publishMu := make(map[string]*sync.Mutex, len(Collections))
	for _, c := range Collections {
		publishMu[c] = new(sync.Mutex)
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		publisher:  publisher,
		logger:     logger,
		conf:       conf,
		publishMu:  publishMu,
	}
}

// Rooms

func (svc *Service) CreateRoom(ctx context.Context, nr NewRoom) (Room, error) {
	room, err := svc.repo.CreateRoom(ctx, Room{
		Number:    nr.Number,
		Capacity:  nr.Capacity,
		Occupants: []string{},
		Type:      nr.Type,
		Price:     nr.Price,
		Features:  nr.Features,
		Floor:     nr.Floor,
		Image:     nr.Image,
		CreatedAt: nowFunc().UTC(),
	})
	if err != nil {
		return Room{}, errors.Wrap(err, "creating room")
	}
	svc.Publish(ctx, CollectionRooms)
	return room, nil
}

// QueryRooms returns rooms sorted by number.
// A non-empty search matches the room number or the name/id of one of its occupants.
func (svc *Service) QueryRooms(ctx context.Context, search string) ([]Room, error) {
	rooms, err := svc.repo.QueryRooms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	sortRooms(rooms)

	search = core.CleanString(search, true /* lower */)
	if search == "" {
		return rooms, nil
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = strings.ToLower(s.Name)
	}

	matches := make([]Room, 0)
	for _, room := range rooms {
		if strings.Contains(strings.ToLower(room.Number), search) {
			matches = append(matches, room)
			continue
		}
		for _, id := range room.Occupants {
			if strings.Contains(strings.ToLower(id), search) || strings.Contains(names[id], search) {
				matches = append(matches, room)
				break
			}
		}
	}
	return matches, nil
}

func (svc *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, id)
}

// Students

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	std, err := svc.repo.CreateStudent(ctx, Student{
		Name:              ns.Name,
		Email:             ns.Email,
		Course:            ns.Course,
		Year:              ns.Year,
		PhoneNumber:       ns.PhoneNumber,
		ParentPhoneNumber: ns.ParentPhoneNumber,
		AadharNumber:      ns.AadharNumber,
		DOB:               ns.DOB,
		TotalFees:         ns.TotalFees,
		CreatedAt:         nowFunc().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrStudentEmailExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return Student{}, errors.Wrap(err, "creating student")
	}
	svc.Publish(ctx, CollectionStudents)
	return std, nil
}

// QueryStudents returns students sorted by name.
func (svc *Service) QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error) {
	filter.Email = core.CleanString(filter.Email, true /* lower */)
	filter.Search = core.CleanString(filter.Search, true /* lower */)
	students, err := svc.repo.QueryStudents(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

// AvailableStudents returns the students without a room: the candidates for allocation.
func (svc *Service) AvailableStudents(ctx context.Context) ([]Student, error) {
	return svc.QueryStudents(ctx, StudentFilter{Unallocated: true})
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) GetStudentByEmail(ctx context.Context, email string) (Student, error) {
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		return Student{}, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return Student{}, ErrStudentNotFound
	}
	return students[0], nil
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (Student, error) {
	if up.IsEmpty() {
		return svc.repo.GetStudent(ctx, id)
	}
	std, err := svc.repo.UpdateStudentProfile(ctx, id, up)
	if err != nil {
		return Student{}, errors.Wrap(err, "updating student profile")
	}
	svc.Publish(ctx, CollectionStudents)
	return std, nil
}

// Allocation

// Allocate assigns the student to a bed in the room.
func (svc *Service) Allocate(ctx context.Context, roomID, studentID string) (Room, error) {
	room, err := svc.repo.Allocate(ctx, roomID, studentID)
	if err != nil {
		return Room{}, errors.Wrap(err, "allocating student")
	}
	svc.Publish(ctx, CollectionRooms, CollectionStudents)
	if len(room.Occupants) > room.Capacity {
		// the store let the capacity check through: stop serving writes
		return room, core.NewShutdownError(fmt.Sprintf("room %s holds %d students for %d beds", room.ID, len(room.Occupants), room.Capacity))
	}
	return room, nil
}

// Deallocate frees the student's bed in the room.
func (svc *Service) Deallocate(ctx context.Context, roomID, studentID string) (Room, error) {
	room, err := svc.repo.Deallocate(ctx, roomID, studentID)
	if err != nil {
		return Room{}, errors.Wrap(err, "deallocating student")
	}
	svc.Publish(ctx, CollectionRooms, CollectionStudents)
	return room, nil
}

// DeleteStudent deletes the student record and frees its bed, if any.
func (svc *Service) DeleteStudent(ctx context.Context, id string) error {
	if err := svc.repo.DeleteStudent(ctx, id); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	svc.Publish(ctx, CollectionRooms, CollectionStudents)
	return nil
}

// Fees

// ResolvePaidTotal computes the new paid total for a payment entry.
// FeeModeAdd adds the amount to the current total, FeeModeSet replaces it.
func ResolvePaidTotal(mode string, current, amount int64) (int64, error) {
	switch mode {
	case FeeModeAdd:
		return current + amount, nil
	case FeeModeSet:
		return amount, nil
	}
	return 0, core.NewValidationError(nil, core.FieldError{Field: "mode", Error: fmt.Sprintf("unknown fee mode %q", mode)})
}

// UpdateFees overwrites the student's paid total. Overpayment is accepted.
func (svc *Service) UpdateFees(ctx context.Context, studentID string, paidTotal int64) (Student, error) {
	if paidTotal < 0 {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "paid fees cannot be negative"})
	}
	std, err := svc.repo.SetPaidFees(ctx, studentID, paidTotal)
	if err != nil {
		return Student{}, errors.Wrap(err, "setting paid fees")
	}
	svc.Publish(ctx, CollectionStudents)
	return std, nil
}

// ApplyPayment resolves a payment entry against the current paid total and saves it.
func (svc *Service) ApplyPayment(ctx context.Context, studentID string, uf UpdateFees) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, errors.Wrap(err, "finding student")
	}
	total, err := ResolvePaidTotal(uf.Mode, std.PaidFees, uf.Amount)
	if err != nil {
		return Student{}, err
	}
	return svc.UpdateFees(ctx, studentID, total)
}

// Notices

func (svc *Service) CreateNotice(ctx context.Context, nn NewNotice) (Notice, error) {
	date := nn.Date
	if date == "" {
		date = nowFunc().Format(DateLayout)
	}
	notice, err := svc.repo.CreateNotice(ctx, Notice{
		Title:    nn.Title,
		Content:  nn.Content,
		Priority: nn.Priority,
		Date:     date,
	})
	if err != nil {
		return Notice{}, errors.Wrap(err, "creating notice")
	}
	svc.Publish(ctx, CollectionNotices)
	return notice, nil
}

// QueryNotices returns notices, most recent first.
func (svc *Service) QueryNotices(ctx context.Context) ([]Notice, error) {
	notices, err := svc.repo.QueryNotices(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying notices")
	}
	sort.SliceStable(notices, func(i, j int) bool { return notices[i].Date > notices[j].Date })
	return notices, nil
}

func (svc *Service) DeleteNotice(ctx context.Context, id string) error {
	if err := svc.repo.DeleteNotice(ctx, id); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	svc.Publish(ctx, CollectionNotices)
	return nil
}

// Leave requests

func (svc *Service) RequestLeave(ctx context.Context, studentID string, nl NewLeaveRequest) (LeaveRequest, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return LeaveRequest{}, errors.Wrap(err, "finding student")
	}
	leave, err := svc.repo.CreateLeaveRequest(ctx, LeaveRequest{
		StudentID: studentID,
		Reason:    nl.Reason,
		StartDate: nl.StartDate,
		EndDate:   nl.EndDate,
		Status:    LeavePending,
		CreatedAt: nowFunc().UTC(),
	})
	if err != nil {
		return LeaveRequest{}, errors.Wrap(err, "creating leave request")
	}
	svc.Publish(ctx, CollectionLeaveRequests)
	return leave, nil
}

// QueryLeaveRequests returns leave requests, latest start date first.
func (svc *Service) QueryLeaveRequests(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error) {
	leaves, err := svc.repo.QueryLeaveRequests(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying leave requests")
	}
	sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].StartDate > leaves[j].StartDate })
	return leaves, nil
}

func (svc *Service) UpdateLeaveStatus(ctx context.Context, id, status string) (LeaveRequest, error) {
	leave, err := svc.repo.UpdateLeaveStatus(ctx, id, status)
	if err != nil {
		return LeaveRequest{}, errors.Wrap(err, "updating leave request status")
	}
	svc.Publish(ctx, CollectionLeaveRequests)
	return leave, nil
}

// Snapshot & feed

// Snapshot reads every collection.
func (svc *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Rooms, err = svc.repo.QueryRooms(ctx); err != nil {
		return Snapshot{}, errors.Wrap(err, "querying rooms")
	}
	sortRooms(snap.Rooms)
	if snap.Students, err = svc.QueryStudents(ctx, StudentFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Grievances, err = svc.QueryGrievances(ctx, GrievanceFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Notices, err = svc.QueryNotices(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.LeaveRequests, err = svc.QueryLeaveRequests(ctx, LeaveFilter{}); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (svc *Service) loadCollection(ctx context.Context, collection string) (interface{}, error) {
	switch collection {
	case CollectionRooms:
		rooms, err := svc.repo.QueryRooms(ctx)
		sortRooms(rooms)
		return rooms, err
	case CollectionStudents:
		return svc.QueryStudents(ctx, StudentFilter{})
	case CollectionGrievances:
		return svc.QueryGrievances(ctx, GrievanceFilter{})
	case CollectionNotices:
		return svc.QueryNotices(ctx)
	case CollectionLeaveRequests:
		return svc.QueryLeaveRequests(ctx, LeaveFilter{})
	}
	return nil, errors.Errorf("unknown collection %q", collection)
}

// Publish pushes the current content of the collections to the feed (all collections when none given).
// A collection that cannot be read is not published: subscribers keep their last snapshot.
func (svc *Service) Publish(ctx context.Context, collections ...string) {
	if svc.publisher == nil {
		return
	}
	if len(collections) == 0 {
		collections = Collections
	}
	for _, c := range collections {
		if err := svc.publish(ctx, c); err != nil && svc.logger != nil {
			svc.logger.Error(fmt.Sprintf("publishing %s: %v", c, err), err)
		}
	}
}

func (svc *Service) publish(ctx context.Context, collection string) error {
	mu, ok := svc.publishMu[collection]
	if !ok {
		return errors.Errorf("unknown collection %q", collection)
	}
	mu.Lock()
	defer mu.Unlock()

	items, err := svc.loadCollection(ctx, collection)
	if err != nil {
		return err
	}
	svc.publisher.Publish(collection, items)
	return nil
}

func sortRooms(rooms []Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		if len(rooms[i].Number) != len(rooms[j].Number) {
			return len(rooms[i].Number) < len(rooms[j].Number)
		}
		return rooms[i].Number < rooms[j].Number
	})
}
