// Package tool defines the tool registry, argument validation, and execution contracts.
package tool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/techmannih/helper-sub007/internal/domain/llm"
)

// Reserved tool names resolved locally by the orchestrator, never over HTTP.
const (
	NameRequestHumanSupport = "request_human_support"
	NameSetUserEmail        = "set_user_email"
)

// EscalationAck is the fixed acknowledgment returned for a human support request.
const EscalationAck = "The conversation has been escalated to a human agent. You will be contacted soon by email."

// ParamType enumerates the supported parameter value types.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamNumber ParamType = "number"
)

// Param describes one entry of a tool's ordered parameter schema.
type Param struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
}

// Tool is a registered HTTP-backed capability the assistant may invoke.
type Tool struct {
	ID              uint
	Name            string
	Slug            string
	Description     string
	Params          []Param
	Method          string
	URL             string
	AuthToken       *string
	AvailableInChat bool
}

// ValueKind tags the variant held by Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
)

// Value is a validated tool argument: either a string or a number.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
}

// StringValue builds a string argument value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// NumberValue builds a numeric argument value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}

// Text renders the value for query strings and JSON bodies.
func (v Value) Text() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

// Native returns the value as its JSON-native Go type.
func (v Value) Native() interface{} {
	if v.Kind == KindNumber {
		return v.Num
	}
	return v.Str
}

// Result captures a tool invocation outcome. Tool failures are data, not
// errors: the model sees the failure text and decides how to proceed.
type Result struct {
	Success bool   `json:"success"`
	Body    string `json:"body"`
}

// Executor performs the HTTP call for a registered tool.
type Executor interface {
	Execute(ctx context.Context, t Tool, args map[string]Value) (*Result, error)
}

// Registry exposes the tools the assistant may call.
type Registry interface {
	ListAvailable(ctx context.Context) ([]Tool, error)
	FindBySlug(ctx context.Context, slug string) (*Tool, error)
}

// ToLLMTool converts the tool record into an OpenAI-compatible definition.
func (t Tool) ToLLMTool() llm.ToolDefinition {
	properties := make(map[string]interface{}, len(t.Params))
	required := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		prop := map[string]interface{}{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        t.Slug,
			Description: t.Description,
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// EscalationDefinition declares the reserved human support tool for the model.
func EscalationDefinition(requireEmail bool) llm.ToolDefinition {
	properties := map[string]interface{}{
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Why the customer needs a human agent",
		},
	}
	required := []string{"reason"}
	if requireEmail {
		properties["email"] = map[string]interface{}{
			"type":        "string",
			"description": "Email address to contact the customer at",
		}
		required = append(required, "email")
	}

	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        NameRequestHumanSupport,
			Description: "Escalate this conversation to a human support agent",
			Parameters: map[string]interface{}{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// SetUserEmailDefinition declares the reserved email capture tool, offered to
// anonymous visitors so escalation has a contact address.
func SetUserEmailDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        NameSetUserEmail,
			Description: "Record the customer's email address for follow-up",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"email": map[string]interface{}{
						"type":        "string",
						"description": "The customer's email address",
					},
				},
				"required": []string{"email"},
			},
		},
	}
}

// IsReserved reports whether the name belongs to a locally resolved tool.
func IsReserved(name string) bool {
	return name == NameRequestHumanSupport || name == NameSetUserEmail
}

// ErrUnknownTool is wrapped when a call names a tool absent from the registry.
var ErrUnknownTool = fmt.Errorf("unknown tool")
