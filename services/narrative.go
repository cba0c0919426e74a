package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"text/template"
	"time"

	"franchise-dispatch-api/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NarrativeInput is the structured reason data turned into prose for staff.
type NarrativeInput struct {
	CaseID               string
	MerchantID           string
	MerchantName         string
	ElapsedDays          int
	Reason               models.CancelReason
	Evidence             models.ContactEvidence
	HasActiveCompetitors bool
}

// NarrativeGenerator polishes a cancellation reason into a short narrative.
type NarrativeGenerator interface {
	Generate(ctx context.Context, in NarrativeInput) (string, error)
}

var fallbackNarrativeTemplate = template.Must(template.New("fallback").Parse(
	`Merchant {{.MerchantName}} ({{.MerchantID}}) requests cancellation of case {{.CaseID}} ` +
		`{{.ElapsedDays}} day(s) after delivery.
Reason: {{.Reason.Category}}{{if .Reason.Detail}} - {{.Reason.Detail}}{{end}}
Follow-up: {{.Evidence.PhoneCallCount}} call(s), {{.Evidence.SMSCount}} SMS.
{{- range .Reason.Answers}}
{{.Question}}: {{.Answer}}
{{- end}}
{{- if .Evidence.Notes}}
Notes: {{.Evidence.Notes}}
{{- end}}`))

// TemplateNarrative is the deterministic narrative used whenever the text
// generation service is unavailable.
func TemplateNarrative(in NarrativeInput) string {
	if in.MerchantName == "" {
		in.MerchantName = in.MerchantID
	}
	var buf bytes.Buffer
	if err := fallbackNarrativeTemplate.Execute(&buf, in); err != nil {
		return fmt.Sprintf("Merchant %s requests cancellation of case %s (%s).", in.MerchantID, in.CaseID, in.Reason.Category)
	}
	return buf.String()
}

// narrate asks gen for a narrative and falls back to the template on any
// failure or empty answer.
func narrate(ctx context.Context, gen NarrativeGenerator, in NarrativeInput) string {
	if gen == nil {
		return TemplateNarrative(in)
	}
	text, err := gen.Generate(ctx, in)
	if err != nil {
		log.Printf("narrative for case %s fell back to template: %v", in.CaseID, degradedErr("text generation", err))
		return TemplateNarrative(in)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return TemplateNarrative(in)
	}
	return text
}

/* ==========================
   Anthropic
   ========================== */

const defaultNarrativeModel = "claude-3-5-haiku-latest"

var errAPIKeyRequired = errors.New("API key required")

type AnthropicNarrator struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
	prompt  *template.Template
}

// NewAnthropicNarrator builds a narrator. ANTHROPIC_API_KEY overrides apiKey.
func NewAnthropicNarrator(apiKey, model string, timeout time.Duration) (*AnthropicNarrator, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", errAPIKeyRequired)
	}
	if model == "" {
		model = defaultNarrativeModel
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	tmpl, err := template.New("narrative").Parse(narrativePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse narrative template: %w", err)
	}
	return &AnthropicNarrator{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   anthropic.Model(model),
		timeout: timeout,
		prompt:  tmpl,
	}, nil
}

func (a *AnthropicNarrator) Generate(ctx context.Context, in NarrativeInput) (string, error) {
	var buf bytes.Buffer
	if err := a.prompt.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buf.String())),
		},
	})
	if err != nil {
		return "", err
	}
	if len(message.Content) == 0 {
		return "", errors.New("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}
	return content.Text, nil
}

const narrativePromptTemplate = `You are writing an internal note for the operations staff of a franchise lead-distribution business.
A partner merchant asks to cancel a lead. Rewrite the structured data below into a short, neutral paragraph (at most 4 sentences).
Do not invent facts. Do not add recommendations.

Case: {{.CaseID}}
Merchant: {{.MerchantName}} ({{.MerchantID}})
Days since delivery: {{.ElapsedDays}}
Reason category: {{.Reason.Category}}
Reason detail: {{.Reason.Detail}}
{{range .Reason.Answers}}- {{.Question}}: {{.Answer}}
{{end}}Phone calls: {{.Evidence.PhoneCallCount}}
SMS sent: {{.Evidence.SMSCount}}
{{if .Evidence.Notes}}Merchant notes: {{.Evidence.Notes}}
{{end}}`
