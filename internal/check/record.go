package check

// Record is the result of one atomic verification.
type Record struct {
	// Name is the human-readable check name shown in reports.
	Name string `json:"name"`
	// Op is the identifier of the check operation that produced the
	// record. It is set by the executor and used by repairs to re-check.
	Op      string  `json:"op"`
	Status  Status  `json:"status"`
	Note    Note    `json:"note,omitempty"`
	Message string  `json:"message,omitempty"`
	Payload Payload `json:"payload,omitempty"`
}

// New returns a record with the given name, status and payload.
func New(name string, status Status, payload Payload) *Record {
	return &Record{Name: name, Status: status, Payload: payload}
}

// SetNote sets the remediation note.
func (r *Record) SetNote(n Note) { r.Note = n }

// SetMessage sets the supplementary operator guidance.
func (r *Record) SetMessage(msg string) { r.Message = msg }

// Adopt copies status and payload from a fresh re-check of the same
// operation. Name, op, note and message are kept.
func (r *Record) Adopt(fresh *Record) {
	if fresh == nil {
		return
	}
	r.Status = fresh.Status
	r.Payload = fresh.Payload
}
