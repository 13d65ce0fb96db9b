// Package triage classifies grievances with a Gemini model.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/hostel"
)

const promptFmt = `Analyze the following student grievance for a hostel management system.
Category: %s
Description: %q

Provide a priority level (Low, Medium, High) based on urgency and a short, polite, 1-sentence summary of the issue for the warden.`

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"priority": {
			Type: genai.TypeString,
			Enum: []string{hostel.PriorityLow, hostel.PriorityMedium, hostel.PriorityHigh},
		},
		"analysis": {Type: genai.TypeString},
	},
	Required: []string{"priority", "analysis"},
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClassifier asks the model for a JSON object {priority, analysis}.
type GeminiClassifier struct {
	model    string
	generate generateFunc // mockable
}

var _ hostel.Classifier = (*GeminiClassifier)(nil)

// New returns the Gemini classifier, or a disabled one when no API key is configured.
func New(ctx context.Context, conf *core.Config) (hostel.Classifier, error) {
	if conf.Triage.APIKey == "" {
		return Disabled{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  conf.Triage.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &GeminiClassifier{model: conf.Triage.Model, generate: client.Models.GenerateContent}, nil
}

func (c *GeminiClassifier) Classify(ctx context.Context, description, category string) (hostel.Triage, error) {
	resp, err := c.generate(ctx, c.model, genai.Text(fmt.Sprintf(promptFmt, category, description)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
	})
	if err != nil {
		return hostel.Triage{}, errors.Wrap(err, "generating content")
	}
	if resp == nil {
		return hostel.Triage{}, errors.New("no response from model")
	}
	return parse(resp.Text())
}

func parse(text string) (hostel.Triage, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	if text = strings.TrimSpace(text); text == "" {
		return hostel.Triage{}, errors.New("empty response from model")
	}

	var t hostel.Triage
	if err := json.Unmarshal([]byte(text), &t); err != nil {
		return hostel.Triage{}, errors.Wrap(err, "decoding model response")
	}
	return t, nil
}

// Disabled is the classifier used without credentials.
type Disabled struct{}

func (Disabled) Classify(context.Context, string, string) (hostel.Triage, error) {
	return hostel.Triage{}, hostel.ErrClassifierDisabled
}
