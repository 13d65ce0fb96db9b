package hostel

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Inconsistency kinds
const (
	OverCapacity     = "over_capacity"
	DanglingOccupant = "dangling_occupant"
	StaleRoomPointer = "stale_room_pointer"
	MissingPointer   = "missing_room_pointer"
	MultipleRooms    = "multiple_rooms"
)

// Inconsistency is a broken room/student invariant found by Audit.
type Inconsistency struct {
	Kind      string `json:"kind"`
	RoomID    string `json:"room_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Detail    string `json:"detail"`
}

// Audit checks the room/student invariants over a snapshot:
// no room over capacity, every occupant is an existing student pointing back at the room,
// and every allocated student is listed by exactly the room it points at.
func Audit(rooms []Room, students []Student) []Inconsistency {
	found := make([]Inconsistency, 0)

	byID := make(map[string]Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}
	listedIn := make(map[string][]Room, len(students))

	for _, room := range rooms {
		if len(room.Occupants) > room.Capacity {
			found = append(found, Inconsistency{
				Kind:   OverCapacity,
				RoomID: room.ID,
				Detail: fmt.Sprintf("room %s has %d occupants for a capacity of %d", room.Number, len(room.Occupants), room.Capacity),
			})
		}
		for _, id := range room.Occupants {
			std, ok := byID[id]
			if !ok {
				found = append(found, Inconsistency{
					Kind: DanglingOccupant, RoomID: room.ID, StudentID: id,
					Detail: fmt.Sprintf("room %s lists unknown student %s", room.Number, id),
				})
				continue
			}
			listedIn[id] = append(listedIn[id], room)
			if std.RoomID == nil {
				found = append(found, Inconsistency{
					Kind: MissingPointer, RoomID: room.ID, StudentID: id,
					Detail: fmt.Sprintf("room %s lists %s who has no room", room.Number, std.Name),
				})
			}
		}
	}

	for _, std := range students {
		rooms := listedIn[std.ID]
		if len(rooms) > 1 {
			found = append(found, Inconsistency{
				Kind: MultipleRooms, StudentID: std.ID,
				Detail: fmt.Sprintf("%s is listed by %d rooms", std.Name, len(rooms)),
			})
		}
		if std.RoomID == nil {
			continue
		}
		var ok bool
		for _, room := range rooms {
			if room.ID == *std.RoomID && room.Number == std.RoomNumber {
				ok = true
				break
			}
		}
		if !ok {
			found = append(found, Inconsistency{
				Kind: StaleRoomPointer, RoomID: *std.RoomID, StudentID: std.ID,
				Detail: fmt.Sprintf("%s points at room %s which does not list them", std.Name, std.RoomNumber),
			})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].Kind < found[j].Kind })
	return found
}

// Audit reads rooms and students from the store and reports every broken invariant.
func (svc *Service) Audit(ctx context.Context) ([]Inconsistency, error) {
	rooms, err := svc.repo.QueryRooms(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	students, err := svc.repo.QueryStudents(ctx, StudentFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return Audit(rooms, students), nil
}
