// Package jobs defines the background work run by the worker process and the
// client side that queues it.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeVerificationMail = "mail:verify_email"
	TypeLoginAlert       = "mail:login_alert"
)

// VerificationMailPayload names the user who should receive a fresh link.
type VerificationMailPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

func NewVerificationMailTask(payload VerificationMailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVerificationMail, data), nil
}

// LoginAlertPayload describes a successful sign-in.
type LoginAlertPayload struct {
	UserID    uuid.UUID `json:"user_id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	At        int64     `json:"at"`
}

func NewLoginAlertTask(payload LoginAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLoginAlert, data), nil
}
