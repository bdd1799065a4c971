// internal/errors/errors.go
package appErrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrCampaignNotFound is returned when a campaign id does not resolve.
type ErrCampaignNotFound struct {
	CampaignID int64
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int64) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

type ErrMessageNotFound struct {
	MessageID int64
}

func (e *ErrMessageNotFound) Error() string {
	return fmt.Sprintf("campaign message with ID %d not found", e.MessageID)
}

func NewMessageNotFound(id int64) error {
	return &ErrMessageNotFound{MessageID: id}
}

type ErrAutoReplyNotFound struct {
	AutoReplyID int64
}

func (e *ErrAutoReplyNotFound) Error() string {
	return fmt.Sprintf("auto reply with ID %d not found", e.AutoReplyID)
}

func NewAutoReplyNotFound(id int64) error {
	return &ErrAutoReplyNotFound{AutoReplyID: id}
}

type ErrReplyNotFound struct {
	ReplyID int64
}

func (e *ErrReplyNotFound) Error() string {
	return fmt.Sprintf("reply with ID %d not found", e.ReplyID)
}

func NewReplyNotFound(id int64) error {
	return &ErrReplyNotFound{ReplyID: id}
}

// ValidationError rejects operator input before any state is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateConflictError means the campaign is in a status that does not allow
// the requested operation. The campaign is left unchanged.
type StateConflictError struct {
	CampaignID int64
	Status     string
	Operation  string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("campaign %d cannot be %s in current status: %s", e.CampaignID, e.Operation, e.Status)
}

func NewStateConflict(id int64, status, operation string) error {
	return &StateConflictError{CampaignID: id, Status: status, Operation: operation}
}

func IsNotFound(err error) bool {
	var c *ErrCampaignNotFound
	var m *ErrMessageNotFound
	var a *ErrAutoReplyNotFound
	var r *ErrReplyNotFound
	return errors.As(err, &c) || errors.As(err, &m) || errors.As(err, &a) || errors.As(err, &r)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsStateConflict(err error) bool {
	var s *StateConflictError
	return errors.As(err, &s)
}
