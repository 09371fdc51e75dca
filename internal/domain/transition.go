package domain

import "fmt"

// InvalidTransitionError identifies the offending (old, new) pair of a
// rejected status write. It is always a hard failure for the caller;
// illegal transitions are never clamped or ignored.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition: %q -> %q", e.Entity, e.From, e.To)
}

// jobTransitions is the legal transition table for jobs. An absent key
// or empty set means the state is terminal. pending -> processing is
// reserved for the claiming worker; processing -> pending is the retry
// path and clears ownership.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed, JobStatusPending, JobStatusCancelled},
	JobStatusCompleted:  {},
	JobStatusFailed:     {},
	JobStatusCancelled:  {},
}

// messageTransitions is the legal transition table for outbound
// messages. bounced and unsubscribed are terminal.
var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusDraft:        {MessageStatusScheduled, MessageStatusSent, MessageStatusFailed},
	MessageStatusScheduled:    {MessageStatusSent, MessageStatusFailed, MessageStatusRetryPending},
	MessageStatusSent:         {MessageStatusDelivered, MessageStatusBounced, MessageStatusFailed},
	MessageStatusDelivered:    {MessageStatusBounced, MessageStatusUnsubscribed},
	MessageStatusFailed:       {MessageStatusRetryPending, MessageStatusFailed},
	MessageStatusRetryPending: {MessageStatusSent, MessageStatusFailed},
	MessageStatusBounced:      {},
	MessageStatusUnsubscribed: {},
}

// CanTransitionJob reports whether a job may move from old to new.
func CanTransitionJob(old, new JobStatus) bool {
	for _, s := range jobTransitions[old] {
		if s == new {
			return true
		}
	}
	return false
}

// ValidateJobTransition rejects any (old, new) pair not present in the
// job transition table.
func ValidateJobTransition(old, new JobStatus) error {
	if !CanTransitionJob(old, new) {
		return &InvalidTransitionError{Entity: "job", From: string(old), To: string(new)}
	}
	return nil
}

// CanTransitionMessage reports whether a message may move from old to new.
func CanTransitionMessage(old, new MessageStatus) bool {
	for _, s := range messageTransitions[old] {
		if s == new {
			return true
		}
	}
	return false
}

// ValidateMessageTransition rejects any (old, new) pair not present in
// the message transition table.
func ValidateMessageTransition(old, new MessageStatus) error {
	if !CanTransitionMessage(old, new) {
		return &InvalidTransitionError{Entity: "message", From: string(old), To: string(new)}
	}
	return nil
}
