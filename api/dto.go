/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the form engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Forms:    FormDTO, StepDTO, FieldDTO
  Sessions: SessionDTO, StatusDTO, CreateSessionRequest, SetFieldRequest,
            SubmitResponse
  Events:   EventDTO, NoticeDTO
  Sandbox:  SandboxReplyDTO, RecordDTO
  Errors:   ErrorResponse

NUMBERS:
  Derived decimals (total hours) are sent as JSON numbers rounded to two
  decimals. Client-entered values are echoed back as entered.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/workforce-hub/form"
	"github.com/warp/workforce-hub/store"
)

// =============================================================================
// FORMS
// =============================================================================

type FormDTO struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Endpoint string    `json:"endpoint"`
	Steps    []StepDTO `json:"steps"`
}

type StepDTO struct {
	Position int        `json:"position"`
	Label    string     `json:"label"`
	Fields   []FieldDTO `json:"fields"`
}

type FieldDTO struct {
	Name      string   `json:"name"`
	Label     string   `json:"label"`
	Kind      string   `json:"kind"`
	Required  bool     `json:"required"`
	Options   []string `json:"options,omitempty"`
	DependsOn []string `json:"dependsOn,omitempty"`
	ReadOnly  bool     `json:"readOnly,omitempty"`
}

func toFormDTO(def *form.Definition) FormDTO {
	dto := FormDTO{ID: def.ID(), Title: def.Title(), Endpoint: def.Endpoint()}
	for _, step := range def.Steps() {
		sd := StepDTO{Position: step.Position, Label: step.Label}
		for _, name := range step.Fields() {
			f, _ := def.Field(name)
			fd := FieldDTO{
				Name:      f.Name,
				Label:     f.DisplayLabel(),
				Kind:      string(f.Kind),
				Required:  f.Required,
				Options:   f.Options,
				DependsOn: f.DependsOn,
				ReadOnly:  f.Derived(),
			}
			if f.Derived() {
				fd.DependsOn = f.Derive.From
			}
			sd.Fields = append(sd.Fields, fd)
		}
		dto.Steps = append(dto.Steps, sd)
	}
	return dto
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSessionRequest optionally prefills values.
type CreateSessionRequest struct {
	Values map[string]any `json:"values,omitempty"`
}

type SetFieldRequest struct {
	Value any `json:"value"`
}

type StatusDTO struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

type SessionDTO struct {
	ID        string            `json:"id"`
	Form      string            `json:"form"`
	Step      int               `json:"step"` // zero-based
	StepCount int               `json:"stepCount"`
	StepLabel string            `json:"stepLabel"`
	Values    map[string]any    `json:"values"`
	Errors    map[string]string `json:"errors"`
	Status    StatusDTO         `json:"status"`
	CanSubmit bool              `json:"canSubmit"`
}

func toSessionDTO(snap form.Snapshot) SessionDTO {
	values := make(map[string]any, len(snap.Values))
	for k, v := range snap.Values {
		if d, ok := v.(decimal.Decimal); ok {
			v = json.Number(form.RoundHours(d).String())
		}
		values[k] = v
	}
	errs := make(map[string]string, len(snap.Errors))
	for k, v := range snap.Errors {
		errs[k] = v
	}
	return SessionDTO{
		ID:        snap.SessionID,
		Form:      snap.Form,
		Step:      snap.Step,
		StepCount: snap.StepCount,
		StepLabel: snap.StepLabel,
		Values:    values,
		Errors:    errs,
		Status:    StatusDTO{State: string(snap.Status.State), Reason: snap.Status.Reason},
		CanSubmit: snap.CanSubmit,
	}
}

// SubmitResponse carries the session after a submit plus the failure, if
// any. Fields lists every invalid field when the form was incomplete.
type SubmitResponse struct {
	Session SessionDTO        `json:"session"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// EVENTS
// =============================================================================

type NoticeDTO struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type EventDTO struct {
	Type    string     `json:"type"` // state, notice, closed
	Session SessionDTO `json:"session"`
	Notice  *NoticeDTO `json:"notice,omitempty"`
}

func toEventDTO(ev form.Event) EventDTO {
	dto := EventDTO{Type: string(ev.Kind), Session: toSessionDTO(ev.Snapshot)}
	if ev.Notice != nil {
		dto.Notice = &NoticeDTO{Level: string(ev.Notice.Level), Message: ev.Notice.Message}
	}
	return dto
}

// =============================================================================
// SANDBOX BACKEND
// =============================================================================

// SandboxReplyDTO is the sandbox backend's answer, shaped like the HR
// backend's.
type SandboxReplyDTO struct {
	Successful bool   `json:"successful"`
	Message    string `json:"message,omitempty"`
	ID         string `json:"id,omitempty"`
}

func toSandboxReplyDTO(reply form.Reply, rec *store.Record) SandboxReplyDTO {
	dto := SandboxReplyDTO{Successful: reply.Successful, Message: reply.Message}
	if rec != nil {
		dto.ID = rec.ID
	}
	return dto
}

type RecordDTO struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	EmployeeID string         `json:"employeeId,omitempty"`
	Status     string         `json:"status"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  string         `json:"createdAt"`
}

func toRecordDTO(rec store.Record) RecordDTO {
	return RecordDTO{
		ID:         rec.ID,
		Kind:       rec.Kind,
		EmployeeID: rec.EmployeeID,
		Status:     rec.Status,
		Payload:    rec.Payload,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the body of every non-2xx response except sandbox
// replies.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
