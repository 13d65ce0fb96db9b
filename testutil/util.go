// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
	"github.com/trezcool/hostel/core/user"
)

// Config returns a test configuration on the in-memory store, with the classifier disabled.
func Config() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		AppName:          "Hostel",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Hostel", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Host:                      "localhost",
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 30 * time.Minute,
		},
		Database: core.DatabaseConfig{Engine: core.EngineMemory},
		Triage:   core.TriageConfig{Model: "gemini-2.5-flash", Timeout: time.Second},
		Birthday: core.BirthdayConfig{Schedule: "0 8 * * *"},
	}
}

// Validator returns a validator with every custom tag and english translation registered.
func Validator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	hostel.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// LogEntry is a message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records every event in memory.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

func (l *Logger) Entries(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	found := make([]LogEntry, 0)
	for _, e := range l.entries {
		if e.Level == level {
			found = append(found, e)
		}
	}
	return found
}

func (l *Logger) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd, role string, studentID *string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		StudentID: studentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent stores a student record named after id.
func CreateStudent(t *testing.T, repo hostel.Repository, id, dob string, totalFees, paidFees int64) hostel.Student {
	t.Helper()
	std, err := repo.CreateStudent(context.Background(), hostel.Student{
		ID:           id,
		Name:         "Student " + id,
		Email:        fmt.Sprintf("%s@example.com", id),
		Course:       "B.Tech",
		Year:         1,
		PhoneNumber:  "9876543210",
		AadharNumber: "1234-5678-9012",
		DOB:          dob,
		TotalFees:    totalFees,
		PaidFees:     paidFees,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

// CreateRoom stores an empty room with the given number and capacity.
func CreateRoom(t *testing.T, repo hostel.Repository, number string, capacity int) hostel.Room {
	t.Helper()
	room, err := repo.CreateRoom(context.Background(), hostel.Room{
		ID:        "r" + number,
		Number:    number,
		Capacity:  capacity,
		Occupants: []string{},
		Type:      hostel.RoomTypeFor(capacity),
		Features:  []string{},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	return room
}
