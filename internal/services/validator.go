package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/llm"
	"github.com/stayflow/stayflow-backend/internal/logger"
	"github.com/stayflow/stayflow-backend/internal/models"
)

// Validation kinds beyond the registration step names
const (
	ValidateMoney   = "MONEY"
	ValidateDate    = "DATE"
	ValidateTransID = "TRANS_ID"
)

// ValidationResult is the semantic check of one dialog answer
type ValidationResult struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

// Validator checks free-form dialog input. Implementations are fail-open.
type Validator interface {
	Validate(ctx context.Context, kind, input string) ValidationResult
}

// Responder produces the general assistant reply for unrecognized messages
type Responder interface {
	Reply(ctx context.Context, body string) (string, error)
}

const jsonSuffix = ` Reply only in JSON: {"isValid": boolean, "message": "friendly correction message if invalid"}`

var validationPrompts = map[string]string{
	models.StepName:        `Check if "%s" is a valid human full name. If it's gibberish like "asdf", "123", or just one letter, it's invalid.`,
	models.StepPhoneNumber: `Check if "%s" is a valid phone number. It should be 10-12 digits.`,
	models.StepRoom:        `Check if "%s" is a valid room identifier (like 101, G1, 203, etc).`,
	models.StepAdvance:     `Check if "%s" is a valid monetary amount or number.`,
	ValidateMoney:          `Check if "%s" is a valid monetary amount (numbers only).`,
	ValidateDate:           `Check if "%s" is a valid date (like DD/MM/YYYY or 2nd Feb).`,
	ValidateTransID:        `Check if "%s" looks like a valid UPI Transaction ID or reference number.`,
}

// LLMValidator asks a language model to judge the input
type LLMValidator struct {
	client llm.Client
	model  string
}

// NewLLMValidator creates a validator. A nil client accepts everything.
func NewLLMValidator(client llm.Client, model string) *LLMValidator {
	return &LLMValidator{client: client, model: model}
}

func (v *LLMValidator) Validate(ctx context.Context, kind, input string) ValidationResult {
	valid := ValidationResult{IsValid: true}
	if v == nil || v.client == nil {
		return valid
	}
	tmpl, ok := validationPrompts[kind]
	if !ok {
		return valid
	}

	res, err := v.client.Chat(ctx, llm.Request{
		Model:     v.model,
		Messages:  []llm.Message{{Role: "user", Content: fmt.Sprintf(tmpl, input) + jsonSuffix}},
		ForceJSON: true,
	})
	if err != nil {
		logger.Warn("AI validation error", "kind", kind, "error", err)
		return valid
	}

	var out struct {
		IsValid *bool  `json:"isValid"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Text)), &out); err != nil {
		logger.Warn("AI validation returned malformed JSON", "kind", kind, "error", err)
		return valid
	}
	if out.IsValid == nil {
		logger.Warn("AI validation reply has no verdict", "kind", kind, "reply", res.Text)
		return valid
	}
	return ValidationResult{IsValid: *out.IsValid, Message: out.Message}
}

// AssistantPersona is the system prompt for general replies
func AssistantPersona(businessName string) string {
	return fmt.Sprintf(`You are an intelligent assistant for %s, a premium Hostel/PG management service in India.
If users say they have paid (by cash or UPI), guide them to provide the Transaction ID or Amount.
Commands: JOIN (register), RENT (see bills), STATUS (check payment), EB (electricity bill), VACATE (request to leave), HISTORY (see old payments).
Always be warm, professional, and use a helpful Indian service tone. If they mention paying by cash or UPI, you can tell them the bot can record it instantly if they provide the details.`, businessName)
}

// LLMResponder answers with the assistant persona
type LLMResponder struct {
	client  llm.Client
	model   string
	persona string
}

func NewLLMResponder(client llm.Client, model, businessName string) *LLMResponder {
	return &LLMResponder{client: client, model: model, persona: AssistantPersona(businessName)}
}

func (r *LLMResponder) Reply(ctx context.Context, body string) (string, error) {
	if r == nil || r.client == nil {
		return "", llm.ErrNotConfigured
	}
	res, err := r.client.Chat(ctx, llm.Request{
		Model: r.model,
		Messages: []llm.Message{
			{Role: "system", Content: r.persona},
			{Role: "user", Content: body},
		},
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Text) == "" {
		return MsgNotUnderstood, nil
	}
	return res.Text, nil
}
