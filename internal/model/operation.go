package model

import "time"

// OutcomeOK marks a journal entry for a command the device confirmed.
const OutcomeOK = "ok"

// OperationRecord is one journal entry for a mutating command.
type OperationRecord struct {
	ID         int       `db:"id"          json:"id"`
	RequestID  string    `db:"request_id"  json:"request_id"`
	Command    string    `db:"command"     json:"command"`
	Outcome    string    `db:"outcome"     json:"outcome"`
	Message    string    `db:"message"     json:"message"`
	StartedAt  time.Time `db:"started_at"  json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}
