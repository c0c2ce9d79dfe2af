package domain

import "fmt"

// MatchDiagnostics summarizes how well the two datasets correlated. It is
// produced by the record linker before any analysis proceeds and must be
// surfaced to the caller for display and alerting.
type MatchDiagnostics struct {
	ProjectIDs     int `json:"project_ids"`
	TransactionIDs int `json:"transaction_ids"`

	// MatchedIDs is the size of the identifier intersection; MatchedProjects
	// additionally counts projects attributed through the composite-key
	// fallback.
	MatchedIDs      int `json:"matched_ids"`
	MatchedProjects int `json:"matched_projects"`
	FallbackMatches int `json:"fallback_matches"`

	// MatchRate = MatchedIDs / max(ProjectIDs, TransactionIDs) * 100.
	MatchRate float64 `json:"match_rate"`

	// LinkedTransactions counts transactions attributed to some project;
	// the remainder is dropped from project-level analysis.
	LinkedTransactions    int `json:"linked_transactions"`
	UnmatchedTransactions int `json:"unmatched_transactions"`

	// Per-table defective rows dropped during loading/normalization.
	DroppedProjectRows     int `json:"dropped_project_rows"`
	DroppedTransactionRows int `json:"dropped_transaction_rows"`
}

// Summary renders the one-line diagnostic used in logs and reports.
func (d MatchDiagnostics) Summary() string {
	return fmt.Sprintf("matched %d of %d project ids against %d transaction ids (%.1f%%), %d fallback matches, %d unmatched transactions",
		d.MatchedIDs, d.ProjectIDs, d.TransactionIDs, d.MatchRate, d.FallbackMatches, d.UnmatchedTransactions)
}
