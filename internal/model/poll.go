package model

import "time"

// PollState tracks one post-pull readiness poll for a customer.
type PollState struct {
	ID            string     `json:"id"`
	CustomerID    int        `json:"customer_id"`
	Domain        string     `json:"domain"`
	Phase         string     `json:"phase"`
	StartedAt     time.Time  `json:"started_at"`
	ReadySince    *time.Time `json:"ready_since,omitempty"`
	LastStatus    string     `json:"last_status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	Ticks         int        `json:"ticks"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether no further ticks will run for this poll.
func (p PollState) Terminal() bool {
	return p.Phase == PollStable || p.Phase == PollTimedOut
}
