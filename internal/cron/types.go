package cron

// Schedule defines when a job fires. Exactly one of the variant fields is
// meaningful for a given Kind.
type Schedule struct {
	Kind    string `json:"kind"` // "at", "every" or "cron"
	AtMs    int64  `json:"at_ms,omitempty"`
	EveryMs int64  `json:"every_ms,omitempty"`
	Expr    string `json:"expr,omitempty"`
	Tz      string `json:"tz,omitempty"`
}

// Payload is what a job injects into the agent when it fires.
type Payload struct {
	Message string `json:"message"`
	Deliver bool   `json:"deliver,omitempty"`
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
}

// JobState tracks runtime bookkeeping. Millisecond timestamps, zero means
// unset.
type JobState struct {
	NextRunAtMs int64  `json:"next_run_at_ms,omitempty"`
	LastRunAtMs int64  `json:"last_run_at_ms,omitempty"`
	LastStatus  string `json:"last_status,omitempty"` // "ok", "error" or "skipped"
	LastError   string `json:"last_error,omitempty"`
}

type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"created_at_ms"`
	UpdatedAtMs    int64    `json:"updated_at_ms"`
	DeleteAfterRun bool     `json:"delete_after_run,omitempty"`
}
