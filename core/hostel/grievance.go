package hostel

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

const defaultTriageTimeout = 10 * time.Second

var (
	ErrClassifierUnavailable = errors.New("triage classifier unavailable")
	// ErrClassifierDisabled is returned by classifiers running without credentials.
	ErrClassifierDisabled = errors.Wrap(ErrClassifierUnavailable, "missing API key")

	fallbackUnavailable = Triage{Priority: PriorityMedium, Summary: "AI Analysis unavailable (Missing API Key)."}
	fallbackFailed      = Triage{Priority: PriorityMedium, Summary: "Could not analyze grievance automatically."}
)

// Triage is the classification of a grievance.
type Triage struct {
	Priority string `json:"priority"`
	Summary  string `json:"analysis"`
}

func (t Triage) valid() bool {
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return t.Summary != ""
	}
	return false
}

// Classifier assigns a priority and a one sentence summary to a grievance.
type Classifier interface {
	Classify(ctx context.Context, description, category string) (Triage, error)
}

// triage never fails: a classifier error, timeout or malformed result yields a Medium fallback.
func (svc *Service) triage(ctx context.Context, ng NewGrievance) Triage {
	if svc.classifier == nil {
		return fallbackUnavailable
	}

	timeout := defaultTriageTimeout
	if svc.conf != nil && svc.conf.Triage.Timeout > 0 {
		timeout = svc.conf.Triage.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := svc.classifier.Classify(ctx, ng.Description, ng.Category)
	if err == nil && !result.valid() {
		err = errors.Errorf("malformed classification: %+v", result)
	}
	if err != nil {
		if errors.Is(err, ErrClassifierDisabled) {
			return fallbackUnavailable
		}
		if svc.logger != nil {
			svc.logger.Warn(fmt.Sprintf("classifying grievance: %v", err), err)
		}
		return fallbackFailed
	}
	return result
}

// SubmitGrievance records a grievance for the student, triaged by the classifier when available.
func (svc *Service) SubmitGrievance(ctx context.Context, studentID string, ng NewGrievance) (Grievance, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return Grievance{}, errors.Wrap(err, "finding student")
	}

	tr := svc.triage(ctx, ng)
	g, err := svc.repo.CreateGrievance(ctx, Grievance{
		StudentID:   studentID,
		Category:    ng.Category,
		Description: ng.Description,
		Status:      GrievancePending,
		Priority:    tr.Priority,
		AIAnalysis:  tr.Summary,
		Timestamp:   nowFunc().UTC(),
	})
	if err != nil {
		return Grievance{}, errors.Wrap(err, "creating grievance")
	}
	svc.Publish(ctx, CollectionGrievances)
	return g, nil
}

// QueryGrievances returns grievances, newest first.
func (svc *Service) QueryGrievances(ctx context.Context, filter GrievanceFilter) ([]Grievance, error) {
	grievances, err := svc.repo.QueryGrievances(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying grievances")
	}
	sort.SliceStable(grievances, func(i, j int) bool { return grievances[i].Timestamp.After(grievances[j].Timestamp) })
	return grievances, nil
}

func (svc *Service) UpdateGrievanceStatus(ctx context.Context, id, status string) (Grievance, error) {
	g, err := svc.repo.UpdateGrievanceStatus(ctx, id, status)
	if err != nil {
		return Grievance{}, errors.Wrap(err, "updating grievance status")
	}
	svc.Publish(ctx, CollectionGrievances)
	return g, nil
}
