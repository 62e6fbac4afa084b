package check

// Note annotates a record with the outcome of a remediation attempt.
type Note string

// Remediation notes. The strings are shown verbatim in reports.
const (
	NoteNone             Note = ""
	NoteFixed            Note = "Auto Fixed"
	NoteFailedToFix      Note = "Unable to Fix"
	NoteNotFixable       Note = "Not Auto-Fixable"
	NoteFixedNeedsReboot Note = "Auto Fixed, Needs Reboot"
	NoteManualFix        Note = "Manual Fix Needed"
)
