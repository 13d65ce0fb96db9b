package hostel

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostel/core"
)

// Collections published on the live feed.
const (
	CollectionRooms         = "rooms"
	CollectionStudents      = "students"
	CollectionGrievances    = "grievances"
	CollectionNotices       = "notices"
	CollectionLeaveRequests = "leaveRequests"
)

var Collections = []string{
	CollectionRooms,
	CollectionStudents,
	CollectionGrievances,
	CollectionNotices,
	CollectionLeaveRequests,
}

// Room types
const (
	RoomSingle = "Single"
	RoomDouble = "Double"
	RoomTriple = "Triple"
	RoomSuite  = "Suite"
)

// Grievance statuses
const (
	GrievancePending    = "Pending"
	GrievanceInProgress = "In Progress"
	GrievanceResolved   = "Resolved"
)

// Priorities
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Notice priorities
const (
	NoticeNormal = "Normal"
	NoticeUrgent = "Urgent"
)

// Leave request statuses
const (
	LeavePending  = "Pending"
	LeaveApproved = "Approved"
	LeaveRejected = "Rejected"
)

// DateLayout is the layout of calendar dates (dob, leave ranges, notices).
const DateLayout = "2006-01-02"

// RoomTypeFor derives the room type from its capacity.
func RoomTypeFor(capacity int) string {
	switch {
	case capacity <= 1:
		return RoomSingle
	case capacity == 2:
		return RoomDouble
	case capacity == 3:
		return RoomTriple
	default:
		return RoomSuite
	}
}

type Room struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	Capacity  int       `json:"capacity"`
	Occupants []string  `json:"occupants"`
	Type      string    `json:"type"`
	Price     int64     `json:"price"`
	Features  []string  `json:"features"`
	Floor     int       `json:"floor"`
	Image     string    `json:"image"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Room) IsFull() bool { return len(r.Occupants) >= r.Capacity }

func (r Room) HasOccupant(studentID string) bool {
	for _, id := range r.Occupants {
		if id == studentID {
			return true
		}
	}
	return false
}

type Student struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	RoomID            *string   `json:"room_id"`
	RoomNumber        string    `json:"room_number"` // display only
	Course            string    `json:"course"`
	Year              int       `json:"year"`
	PhoneNumber       string    `json:"phone_number"`
	ParentPhoneNumber string    `json:"parent_phone_number"`
	AadharNumber      string    `json:"aadhar_number"`
	DOB               string    `json:"dob"`
	TotalFees         int64     `json:"total_fees"`
	PaidFees          int64     `json:"paid_fees"`
	CreatedAt         time.Time `json:"created_at"`
}

func (s Student) IsAllocated() bool { return s.RoomID != nil }

type Grievance struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	AIAnalysis  string    `json:"ai_analysis"`
	Timestamp   time.Time `json:"timestamp"`
}

type Notice struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
	Date     string `json:"date"`
}

type LeaveRequest struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Reason    string    `json:"reason"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRoom contains information needed to create a new Room.
type NewRoom struct {
	Number   string   `json:"number" validate:"required,notblank"`
	Capacity int      `json:"capacity" validate:"required,min=1"`
	Type     string   `json:"type" validate:"omitempty,oneof=Single Double Triple Suite"`
	Price    int64    `json:"price" validate:"min=0"`
	Features []string `json:"features"`
	Floor    int      `json:"floor" validate:"min=0"`
	Image    string   `json:"image" validate:"omitempty,url"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Number = core.CleanString(nr.Number)
	nr.Features = core.CleanStrings(nr.Features)
	if nr.Type == "" {
		nr.Type = RoomTypeFor(nr.Capacity)
	}
	return validate.Struct(nr)
}

// NewStudent contains information needed to pre-provision a Student record.
type NewStudent struct {
	Name              string `json:"name" validate:"required,notblank"`
	Email             string `json:"email" validate:"required,email"`
	Course            string `json:"course" validate:"required,notblank"`
	Year              int    `json:"year" validate:"required,min=1,max=10"`
	PhoneNumber       string `json:"phone_number" validate:"required,phone"`
	ParentPhoneNumber string `json:"parent_phone_number" validate:"omitempty,phone"`
	AadharNumber      string `json:"aadhar_number" validate:"required,natid"`
	DOB               string `json:"dob" validate:"omitempty,ymd"`
	TotalFees         int64  `json:"total_fees" validate:"min=0"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Course = core.CleanString(ns.Course)
	ns.PhoneNumber = core.CleanString(ns.PhoneNumber)
	ns.ParentPhoneNumber = core.CleanString(ns.ParentPhoneNumber)
	ns.AadharNumber = core.CleanString(ns.AadharNumber)
	if ns.DOB = core.CleanString(ns.DOB); ns.DOB == "" {
		ns.DOB = defaultDOB
	}
	return validate.Struct(ns)
}

// UpdateProfile defines the Student fields a student may change on their own record.
type UpdateProfile struct {
	Course            *string `json:"course" validate:"omitempty,notblank"`
	Year              *int    `json:"year" validate:"omitempty,min=1,max=10"`
	PhoneNumber       *string `json:"phone_number" validate:"omitempty,phone"`
	ParentPhoneNumber *string `json:"parent_phone_number" validate:"omitempty,phone"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	for _, s := range []*string{up.Course, up.PhoneNumber, up.ParentPhoneNumber} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(up)
}

func (up UpdateProfile) IsEmpty() bool {
	return up.Course == nil && up.Year == nil && up.PhoneNumber == nil && up.ParentPhoneNumber == nil
}

// Fee update modes
const (
	FeeModeAdd = "add"
	FeeModeSet = "set"
)

// UpdateFees is a payment entry: either a payment added to the paid total or a corrected total.
type UpdateFees struct {
	Mode   string `json:"mode" validate:"required,oneof=add set"`
	Amount int64  `json:"amount" validate:"min=0"`
}

func (uf *UpdateFees) Validate(validate *validator.Validate) error {
	uf.Mode = core.CleanString(uf.Mode, true /* lower */)
	return validate.Struct(uf)
}

type NewGrievance struct {
	Category    string `json:"category" validate:"required,notblank"`
	Description string `json:"description" validate:"required,notblank,max=2000"`
}

func (ng *NewGrievance) Validate(validate *validator.Validate) error {
	ng.Category = core.CleanString(ng.Category)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

type NewNotice struct {
	Title    string `json:"title" validate:"required,notblank"`
	Content  string `json:"content" validate:"required,notblank"`
	Priority string `json:"priority" validate:"omitempty,oneof=Normal Urgent"`
	Date     string `json:"date" validate:"omitempty,ymd"`
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Content = core.CleanString(nn.Content)
	if nn.Priority == "" {
		nn.Priority = NoticeNormal
	}
	return validate.Struct(nn)
}

type NewLeaveRequest struct {
	Reason    string `json:"reason" validate:"required,notblank"`
	StartDate string `json:"start_date" validate:"required,ymd"`
	EndDate   string `json:"end_date" validate:"required,ymd"`
}

func (nl *NewLeaveRequest) Validate(validate *validator.Validate) error {
	nl.Reason = core.CleanString(nl.Reason)
	nl.StartDate = core.CleanString(nl.StartDate)
	nl.EndDate = core.CleanString(nl.EndDate)
	if err := validate.Struct(nl); err != nil {
		return err
	}
	// dates are YYYY-MM-DD so they compare lexically
	if nl.EndDate < nl.StartDate {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date cannot be before start date"})
	}
	return nil
}

type UpdateStatus struct {
	Status string `json:"status" validate:"required"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate, allowed ...string) error {
	us.Status = core.CleanString(us.Status)
	if err := validate.Struct(us); err != nil {
		return err
	}
	for _, s := range allowed {
		if strings.EqualFold(us.Status, s) {
			us.Status = s
			return nil
		}
	}
	return core.NewValidationError(nil, core.FieldError{
		Field: "status",
		Error: "status must be one of [" + strings.Join(allowed, ", ") + "]",
	})
}

// StudentFilter applies AND operation on available fields.
type StudentFilter struct {
	Email       string
	Unallocated bool
	Search      string // case-insensitive match on name or id
}

type GrievanceFilter struct {
	StudentID string
	Status    string
}

type LeaveFilter struct {
	StudentID string
	Status    string
}
