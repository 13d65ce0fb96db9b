package user

import "github.com/pkg/errors"

var ErrPermissionDenied = errors.New("permission denied")

// Action is a kind of access to an entity.
type Action string

const (
	// ActionRead reads an entity. Entities without owner (rooms, notices) are readable by any authenticated role.
	ActionRead Action = "read"
	// ActionWrite creates or modifies an owned entity: profile fields, grievances, leave requests.
	ActionWrite Action = "write"
	// ActionManage covers administrative mutations: rooms, allocation, fees, statuses, notices.
	ActionManage Action = "manage"
)

// Identity is an authenticated user as seen by the access control gate.
type Identity struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	StudentID string `json:"student_id,omitempty"`
}

func (id Identity) IsAdmin() bool   { return id.Role == RoleAdmin }
func (id Identity) IsStudent() bool { return id.Role == RoleStudent }

// Authorize reports whether the identity may perform action on an entity owned by ownerStudentID
// (empty for entities without owner).
// Admins may do anything. Students may read unowned entities and read or write their own.
func (id Identity) Authorize(action Action, ownerStudentID string) error {
	switch id.Role {
	case RoleAdmin:
		return nil
	case RoleStudent:
		if id.StudentID == "" {
			return ErrPermissionDenied
		}
		switch action {
		case ActionRead:
			if ownerStudentID == "" || ownerStudentID == id.StudentID {
				return nil
			}
		case ActionWrite:
			if ownerStudentID == id.StudentID {
				return nil
			}
		}
	}
	return ErrPermissionDenied
}
