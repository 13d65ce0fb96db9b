package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core/hostel"
)

var errAlreadySeeded = errors.New("the store already holds rooms, refusing to seed")

type seedRoom struct {
	hostel.Room
	occupants []string
}

func demoRooms() []seedRoom {
	room := func(id, number string, capacity int, typ string, price int64, floor int, features []string, occupants ...string) seedRoom {
		return seedRoom{
			Room: hostel.Room{
				ID: id, Number: number, Capacity: capacity, Occupants: []string{}, Type: typ,
				Price: price, Features: features, Floor: floor,
			},
			occupants: occupants,
		}
	}
	return []seedRoom{
		room("r101", "101", 1, hostel.RoomSingle, 1500, 1, []string{"Ocean View", "King Bed", "Smart TV"}),
		room("r102", "102", 2, hostel.RoomDouble, 900, 1, []string{"Garden View", "Study Desk", "Ensuite"}, "s1"),
		room("r103", "103", 3, hostel.RoomTriple, 600, 1, []string{"Bunk Beds", "Shared Lounge", "High-Speed Wifi"}, "s2", "s3", "s4"),
		room("r104", "104", 3, hostel.RoomTriple, 600, 1, []string{"Standard View", "Storage Lockers"}, "s5"),
		room("r201", "201", 1, hostel.RoomSuite, 2000, 2, []string{"Private Balcony", "Jacuzzi", "Kitchenette"}),
		room("r202", "202", 2, hostel.RoomDouble, 1100, 2, []string{"City View", "Ergonomic Chairs"}),
		room("r203", "203", 2, hostel.RoomDouble, 1100, 2, []string{"City View", "Ergonomic Chairs"}),
	}
}

// demoStudents returns the demo roster; the first student's birthday is today.
func demoStudents(today time.Time) []hostel.Student {
	std := func(id, name, email, course string, year int, phone, parentPhone, aadhar, dob string, total, paid int64) hostel.Student {
		return hostel.Student{
			ID: id, Name: name, Email: email, Course: course, Year: year,
			PhoneNumber: phone, ParentPhoneNumber: parentPhone, AadharNumber: aadhar,
			DOB: dob, TotalFees: total, PaidFees: paid,
		}
	}
	return []hostel.Student{
		std("s1", "Alice Johnson", "alice@univ.edu", "Computer Science", 2, "555-0101", "555-0102", "1234-5678-9012", today.Format(hostel.DateLayout), 5000, 5000),
		std("s2", "Bob Smith", "bob@univ.edu", "Engineering", 1, "555-0103", "555-0104", "2345-6789-0123", "2004-05-15", 5000, 2500),
		std("s3", "Charlie Brown", "charlie@univ.edu", "Arts", 3, "555-0105", "555-0106", "3456-7890-1234", "2002-12-01", 4500, 0),
		std("s4", "David Lee", "david@univ.edu", "Business", 2, "555-0107", "555-0108", "4567-8901-2345", "2003-08-20", 5000, 4800),
		std("s5", "Eva Green", "eva@univ.edu", "Physics", 4, "555-0109", "555-0110", "5678-9012-3456", "2001-03-10", 4500, 4500),
		std("s6", "Frank White", "frank@univ.edu", "Math", 1, "555-0111", "555-0112", "6789-0123-4567", "2005-01-05", 5000, 1000),
		std("s7", "Grace Hall", "grace@univ.edu", "Biology", 2, "555-0113", "555-0114", "7890-1234-5678", "2003-11-22", 5000, 5000),
		std("s8", "Henry Ford", "henry@univ.edu", "Engineering", 1, "555-0115", "555-0116", "8901-2345-6789", "2004-06-30", 5000, 0),
		std("s9", "Ivy Chen", "ivy@univ.edu", "Chemistry", 3, "555-0117", "555-0118", "9012-3456-7890", "2002-09-14", 4500, 3000),
	}
}

var demoNotices = []hostel.Notice{
	{ID: "n1", Title: "Gym Maintenance", Content: "The gym will be closed for upgrades this weekend.", Priority: hostel.NoticeNormal, Date: "2023-10-25"},
	{ID: "n2", Title: "Fee Deadline", Content: "Final date for semester fee payment is Nov 1st.", Priority: hostel.NoticeUrgent, Date: "2023-10-20"},
}

var demoLeaves = []hostel.LeaveRequest{
	{ID: "l1", StudentID: "s1", Reason: "Visiting parents for weekend", StartDate: "2023-11-03", EndDate: "2023-11-05", Status: hostel.LeavePending},
	{ID: "l2", StudentID: "s2", Reason: "Medical Checkup", StartDate: "2023-10-28", EndDate: "2023-10-28", Status: hostel.LeaveApproved},
}

// seed loads the demo data into an empty store. Rooms are filled through the allocation path
// so that rosters and student allocations agree.
func (cli *commandLine) seed(ctx context.Context) error {
	rooms, err := cli.hostelRepo.QueryRooms(ctx)
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	if len(rooms) > 0 {
		return errAlreadySeeded
	}

	now := time.Now().UTC()
	for _, s := range demoStudents(now) {
		s.CreatedAt = now
		if _, err := cli.hostelRepo.CreateStudent(ctx, s); err != nil {
			return errors.Wrapf(err, "creating student %s", s.ID)
		}
	}

	seeded := demoRooms()
	for _, r := range seeded {
		r.CreatedAt = now
		if _, err := cli.hostelRepo.CreateRoom(ctx, r.Room); err != nil {
			return errors.Wrapf(err, "creating room %s", r.Number)
		}
	}
	for _, r := range seeded {
		for _, id := range r.occupants {
			if _, err := cli.hostelSvc.Allocate(ctx, r.ID, id); err != nil {
				return errors.Wrapf(err, "allocating %s to room %s", id, r.Number)
			}
		}
	}

	for _, n := range demoNotices {
		if _, err := cli.hostelRepo.CreateNotice(ctx, n); err != nil {
			return errors.Wrapf(err, "creating notice %s", n.ID)
		}
	}
	for _, l := range demoLeaves {
		l.CreatedAt = now
		if _, err := cli.hostelRepo.CreateLeaveRequest(ctx, l); err != nil {
			return errors.Wrapf(err, "creating leave request %s", l.ID)
		}
	}

	fmt.Fprintf(cli.out, "seeded %d rooms, %d students, %d notices and %d leave requests\n",
		len(seeded), len(demoStudents(now)), len(demoNotices), len(demoLeaves))
	return nil
}
