package constants

import "strings"

// RunStatus is the canonical status for rows in invoice_runs.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusSucceeded RunStatus = "SUCCEEDED" // every stage that ran completed
	RunStatusPartial   RunStatus = "PARTIAL"   // extraction ok, a later stage failed
	RunStatusFailed    RunStatus = "FAILED"    // nothing usable was extracted
)

// Stage names a pipeline step in results and logs.
type Stage string

const (
	StageTextExtraction  Stage = "text_extraction"
	StageFieldExtraction Stage = "field_extraction"
	StageCategorization  Stage = "categorization"
	StageBillMapping     Stage = "bill_mapping"
	StageAccounting      Stage = "accounting"
	StageInternal        Stage = "internal"
)

// ParseRunStatus accepts any casing of a known status.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch st := RunStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed:
		return st, true
	}
	return "", false
}
