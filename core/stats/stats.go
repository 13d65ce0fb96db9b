// Package stats derives dashboard figures from a hostel snapshot. Every function is pure.
package stats

import (
	"math"

	"github.com/trezcool/hostel/core/hostel"
)

// Fee statuses
const (
	FeePaid    = "Paid"
	FeeUnpaid  = "Unpaid"
	FeePartial = "Partial"
)

// OccupancyRate is the percentage of occupied beds, rounded half up; 0 when there are no beds.
func OccupancyRate(rooms []hostel.Room) int {
	var occupied, capacity int
	for _, r := range rooms {
		occupied += len(r.Occupants)
		capacity += r.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return int(math.Floor(100*float64(occupied)/float64(capacity) + 0.5))
}

func PendingGrievances(grievances []hostel.Grievance) int {
	var n int
	for _, g := range grievances {
		if g.Status == hostel.GrievancePending {
			n++
		}
	}
	return n
}

func PendingLeaves(leaves []hostel.LeaveRequest) int {
	var n int
	for _, l := range leaves {
		if l.Status == hostel.LeavePending {
			n++
		}
	}
	return n
}

// AvailableStudents returns the students without a room.
func AvailableStudents(students []hostel.Student) []hostel.Student {
	available := make([]hostel.Student, 0)
	for _, s := range students {
		if !s.IsAllocated() {
			available = append(available, s)
		}
	}
	return available
}

// PendingFees is the amount left to pay; negative on overpayment.
func PendingFees(s hostel.Student) int64 {
	return s.TotalFees - s.PaidFees
}

func FeeStatus(s hostel.Student) string {
	pending := PendingFees(s)
	switch {
	case pending == 0:
		return FeePaid
	case pending == s.TotalFees:
		return FeeUnpaid
	default:
		return FeePartial
	}
}

type FeeTotals struct {
	TotalFees      int64 `json:"total_fees"`
	TotalCollected int64 `json:"total_collected"`
	TotalPending   int64 `json:"total_pending"`
}

func Totals(students []hostel.Student) FeeTotals {
	var t FeeTotals
	for _, s := range students {
		t.TotalFees += s.TotalFees
		t.TotalCollected += s.PaidFees
	}
	t.TotalPending = t.TotalFees - t.TotalCollected
	return t
}

type Dashboard struct {
	OccupancyRate     int       `json:"occupancy_rate"`
	TotalRooms        int       `json:"total_rooms"`
	TotalStudents     int       `json:"total_students"`
	AvailableStudents int       `json:"available_students"`
	PendingGrievances int       `json:"pending_grievances"`
	PendingLeaves     int       `json:"pending_leaves"`
	Fees              FeeTotals `json:"fees"`
}

func NewDashboard(snap hostel.Snapshot) Dashboard {
	return Dashboard{
		OccupancyRate:     OccupancyRate(snap.Rooms),
		TotalRooms:        len(snap.Rooms),
		TotalStudents:     len(snap.Students),
		AvailableStudents: len(AvailableStudents(snap.Students)),
		PendingGrievances: PendingGrievances(snap.Grievances),
		PendingLeaves:     PendingLeaves(snap.LeaveRequests),
		Fees:              Totals(snap.Students),
	}
}
