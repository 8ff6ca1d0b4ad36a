package database

// Run is one invocation of the update runner.
type Run struct {
	ID          int64
	RunDate     string // YYYY-MM-DD, the "today" used for every record in the run
	StartedAt   string
	Aborted     bool
	AbortReason *string
	Entries     []RunEntry
}

// RunEntry is the outcome for one tracked work within a run.
type RunEntry struct {
	Position    int
	WorkID      string
	DisplayName string
	Outcome     string // "updated", "failed" or "skipped"
	Reason      *string
	Samples     int
}

// Stats contains aggregate ledger statistics.
type Stats struct {
	TotalRuns      int
	AbortedRuns    int
	DaysWithRuns   int
	UpdatedEntries int
	FailedEntries  int
}
