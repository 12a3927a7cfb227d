package constants

// OutcomeStatus is the canonical status stored in the run ledger.
type OutcomeStatus string

// Stable values (store these exact strings in DB).
const (
	OutcomeWritten OutcomeStatus = "WRITTEN" // record validated and appended to the output store
	OutcomeFailed  OutcomeStatus = "FAILED"  // generation or parse failure after all attempts
)
