package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/user"
)

// addUser creates an account. A STUDENT account must be linked to an existing student record.
func (cli *commandLine) addUser(ctx context.Context, name, email, role, studentID, pwd string) error {
	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Role:            strings.ToUpper(core.CleanString(role)),
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if studentID != "" {
		if _, err := cli.hostelSvc.GetStudent(ctx, studentID); err != nil {
			return err
		}
		nu.StudentID = &studentID
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	if nu.Role == user.RoleStudent && nu.StudentID == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "student", Error: "a student account needs a student record"})
	}

	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s account created for %s (%s)\n", usr.Role, usr.Name, usr.Email)
	return nil
}
