package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
)

// Roles
const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"
	RoleGuest   = "GUEST" // never authenticates
)

var AllRoles = []string{RoleAdmin, RoleStudent, RoleGuest}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	StudentID    *string   `json:"student_id"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// Identity returns the access-control view of the user.
func (u User) Identity() Identity {
	id := Identity{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	if u.StudentID != nil {
		id.StudentID = *u.StudentID
	}
	return id
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string  `json:"name" validate:"required,notblank"`
	Email           string  `json:"email" validate:"required,email"`
	Role            string  `json:"role" validate:"required,oneof=ADMIN STUDENT GUEST"`
	StudentID       *string `json:"student_id"`
	Password        string  `json:"password" validate:"required"`
	PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// RegisterStudent is a self-activation request for a pre-provisioned Student record.
type RegisterStudent struct {
	Email           string `json:"email" validate:"required,email"`
	AadharNumber    string `json:"aadhar_number" validate:"required,natid"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rs *RegisterStudent) Validate(validate *validator.Validate) error {
	rs.Email = core.CleanString(rs.Email, true /* lower */)
	rs.AadharNumber = core.CleanString(rs.AadharNumber)
	return validate.Struct(rs)
}

// verifies reports whether the registration's verification id matches the student record.
func (rs RegisterStudent) verifies(std hostel.Student) bool {
	return hostel.NormalizeNationalID(rs.AadharNumber) == hostel.NormalizeNationalID(std.AadharNumber)
}

// GetFilter selects a single User; the first non-empty field is used.
type GetFilter struct {
	ID        string
	Email     string
	StudentID string
}
