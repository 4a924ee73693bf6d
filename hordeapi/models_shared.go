package hordeapi

// JobProgress is the progress block shared by the async job check and
// status responses.
type JobProgress struct {
	// Finished is the number of results already generated.
	Finished int `json:"finished"`

	// Processing is the number of results a worker is generating now.
	Processing int `json:"processing"`

	// Restarted is the number of results that had to be requeued after
	// a worker abandoned them.
	Restarted int `json:"restarted"`

	// Waiting is the number of results not yet picked up by a worker.
	Waiting int `json:"waiting"`

	// Done reports whether the whole job has finished.
	Done bool `json:"done"`

	// Faulted reports whether the job failed server-side. Faulted jobs
	// never complete; callers should stop polling.
	Faulted bool `json:"faulted"`

	// WaitTime is the expected seconds until completion.
	WaitTime int `json:"wait_time"`

	// QueuePosition is the job's place in the queue.
	QueuePosition int `json:"queue_position"`

	// Kudos consumed by the job so far.
	Kudos float64 `json:"kudos"`

	// IsPossible reports whether the connected worker pool can fulfil
	// the request at all.
	IsPossible bool `json:"is_possible"`
}

// FinishedCount returns how many results are done.
func (p *JobProgress) FinishedCount() int {
	return p.Finished
}

// IsJobComplete reports whether the job has produced the expected number
// of results. The server's done flag wins when set, since a faulted job
// can be done with fewer results than expected.
func (p *JobProgress) IsJobComplete(expected int) bool {
	if p.Done {
		return true
	}
	return expected > 0 && p.Finished >= expected
}

// IsJobPossible reports whether any connected worker can pick the job up.
func (p *JobProgress) IsJobPossible() bool {
	return p.IsPossible && !p.Faulted
}
