package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound             = errors.New("user not found")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrRoleMismatch         = errors.New("role mismatch")
	ErrNoPriorRecord        = errors.New("no student record found with this email, please contact the warden")
	ErrVerificationMismatch = errors.New("aadhar number does not match our records")
	ErrEmailRegistered      = errors.New("an account is already registered with this email")
)

type (
	Repository interface {
		// CreateUser fails with ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, user User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsers(ctx context.Context) ([]User, error)
		UpdateUser(ctx context.Context, user User) (User, error)
	}

	// StudentDirectory finds the pre-provisioned student records accounts are linked to.
	StudentDirectory interface {
		GetStudentByEmail(ctx context.Context, email string) (hostel.Student, error)
	}

	Service struct {
		repo     Repository
		students StudentDirectory
	}
)

func NewService(repo Repository, students StudentDirectory) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := nowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		StudentID: nu.StudentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetByStudentID returns the account linked to the student record.
func (svc *Service) GetByStudentID(ctx context.Context, studentID string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{StudentID: studentID})
}

// Login checks the credentials and that the account holds the requested role.
func (svc *Service) Login(ctx context.Context, email, pwd, role string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if usr.Role != role || usr.Role == RoleGuest {
		return User{}, ErrRoleMismatch
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

// Register activates an account for an existing student record.
// The account is linked to that record; no student is ever created here.
func (svc *Service) Register(ctx context.Context, rs RegisterStudent) (User, error) {
	std, err := svc.students.GetStudentByEmail(ctx, rs.Email)
	if err != nil {
		if errors.Cause(err) == hostel.ErrStudentNotFound {
			return User{}, ErrNoPriorRecord
		}
		return User{}, errors.Wrap(err, "finding student by email")
	}
	if !rs.verifies(std) {
		return User{}, ErrVerificationMismatch
	}

	if _, err := svc.repo.GetUser(ctx, GetFilter{StudentID: std.ID}); err == nil {
		return User{}, ErrEmailRegistered
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by student")
	}

	now := nowFunc().UTC()
	usr := User{
		Name:      std.Name,
		Email:     rs.Email,
		Role:      RoleStudent,
		StudentID: &std.ID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(rs.Password); err != nil {
		return User{}, err
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, ErrEmailRegistered
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}
