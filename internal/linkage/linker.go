// Package linkage correlates the project registry with the transaction
// table. Identifier matching is authoritative; a composite region key
// covers projects whose identifiers never appear on the transaction side.
package linkage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	apperrors "presalecli/internal/errors"
	"presalecli/pkg/contracts/domain"
)

// serialPattern matches the registration serials embedded in an identifier
// cell. Cells may carry several serials plus annotations, so the serials
// are extracted rather than compared whole.
var serialPattern = regexp.MustCompile(`\b[A-Z0-9]{10,16}\b`)

// ProjectSales is one project with its attributed transactions.
type ProjectSales struct {
	domain.Project

	UnitsSold     int
	Cancelled     int
	FirstSaleDate *time.Time
	ViaFallback   bool
	Transactions  []domain.Transaction
}

// Result is the outcome of one linkage pass.
type Result struct {
	Projects    []ProjectSales
	Diagnostics domain.MatchDiagnostics
}

// Linker joins transactions to projects.
type Linker struct {
	logger *slog.Logger
}

// NewLinker creates a Linker. A nil logger falls back to slog.Default.
func NewLinker(logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{logger: logger}
}

// Link attributes every transaction to at most one project.
//
// The primary path intersects the identifier sets of both tables. Projects
// whose identifiers match nothing fall back to the region|district|name
// composite key. Transactions that match neither way are excluded and
// counted. When no transaction can be attributed either way the datasets
// cannot be correlated and the run must not continue.
func (l *Linker) Link(ctx context.Context, projects []domain.Project, transactions []domain.Transaction) (*Result, error) {
	result := &Result{
		Projects: make([]ProjectSales, len(projects)),
	}

	// Identifier index: every alias of every project points at its row.
	// The first project claiming an identifier keeps it.
	idIndex := make(map[string]int)
	projectIDs := make(map[string]struct{})
	for i, p := range projects {
		result.Projects[i] = ProjectSales{Project: p}
		for _, id := range ExtractIDs(p.ID) {
			projectIDs[id] = struct{}{}
			if _, taken := idIndex[id]; !taken {
				idIndex[id] = i
			}
		}
	}

	txIDs := make(map[string]struct{})
	matchedIDs := make(map[string]struct{})
	unresolved := make([]int, 0)

	for t, tx := range transactions {
		attached := false
		for _, id := range ExtractIDs(tx.RefID) {
			txIDs[id] = struct{}{}
			if _, shared := projectIDs[id]; shared {
				matchedIDs[id] = struct{}{}
			}
			if i, ok := idIndex[id]; ok && !attached {
				attach(&result.Projects[i], tx)
				attached = true
			}
		}
		if !attached {
			unresolved = append(unresolved, t)
		}
	}

	// Composite fallback, only for projects the identifier pass missed.
	compositeIndex := make(map[string]int)
	for i := range result.Projects {
		if result.Projects[i].UnitsSold > 0 {
			continue
		}
		key := result.Projects[i].CompositeKey()
		if _, taken := compositeIndex[key]; !taken {
			compositeIndex[key] = i
		}
	}

	fallbackMatches := 0
	unmatched := 0
	for _, t := range unresolved {
		tx := transactions[t]
		if i, ok := compositeIndex[tx.CompositeKey()]; ok {
			attach(&result.Projects[i], tx)
			result.Projects[i].ViaFallback = true
			fallbackMatches++
			continue
		}
		unmatched++
	}

	matchedProjects := 0
	linked := 0
	for i := range result.Projects {
		if result.Projects[i].UnitsSold > 0 {
			matchedProjects++
			linked += result.Projects[i].UnitsSold
		}
	}

	result.Diagnostics = domain.MatchDiagnostics{
		ProjectIDs:            len(projectIDs),
		TransactionIDs:        len(txIDs),
		MatchedIDs:            len(matchedIDs),
		MatchedProjects:       matchedProjects,
		FallbackMatches:       fallbackMatches,
		MatchRate:             matchRate(len(matchedIDs), len(projectIDs), len(txIDs)),
		LinkedTransactions:    linked,
		UnmatchedTransactions: unmatched,
	}

	if len(matchedIDs) == 0 && fallbackMatches == 0 {
		return nil, &apperrors.UnlinkedDatasetsError{
			ProjectIDs:     len(projectIDs),
			TransactionIDs: len(txIDs),
		}
	}

	l.logger.InfoContext(ctx, "datasets linked",
		slog.Int("projects", len(projects)),
		slog.Int("transactions", len(transactions)),
		slog.Int("matched_projects", matchedProjects),
		slog.Int("fallback_matches", fallbackMatches),
		slog.Int("unmatched_transactions", unmatched),
		slog.String("match_rate", fmt.Sprintf("%.2f%%", result.Diagnostics.MatchRate)))

	return result, nil
}

// attach adds one transaction to a project. Cancelled deals still count as
// sold units (the unit left the inventory pool when the contract signed)
// but never drive the first-sale date.
func attach(p *ProjectSales, tx domain.Transaction) {
	p.Transactions = append(p.Transactions, tx)
	p.UnitsSold++
	if tx.Cancelled {
		p.Cancelled++
		return
	}
	if tx.Date != nil && (p.FirstSaleDate == nil || tx.Date.Before(*p.FirstSaleDate)) {
		d := *tx.Date
		p.FirstSaleDate = &d
	}
}

// ExtractIDs splits an identifier cell into its normalized identifiers.
// Cells may list several aliases (merged entities) separated by commas or
// the ideographic comma, and a serial may be wrapped in annotations.
// Serial-shaped tokens win; when no token is serial-shaped the cleaned
// list entries are used verbatim so nonstandard identifiers still match
// their own kind on the other side.
func ExtractIDs(raw string) []string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, `"'`)
	if cleaned == "" {
		return nil
	}

	upper := strings.ToUpper(cleaned)
	ids := serialPattern.FindAllString(upper, -1)

	if len(ids) == 0 {
		parts := strings.FieldsFunc(upper, func(r rune) bool {
			return r == ',' || r == '、' || r == ';'
		})
		for _, part := range parts {
			part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"'`))
			if part != "" {
				ids = append(ids, part)
			}
		}
	}

	deduped := ids[:0]
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	if len(deduped) == 0 {
		return nil
	}
	return deduped
}

// matchRate is the share of identifiers on the larger side that matched.
func matchRate(matched, projectIDs, txIDs int) float64 {
	denom := projectIDs
	if txIDs > denom {
		denom = txIDs
	}
	if denom == 0 {
		return 0
	}
	return math.Round(float64(matched)/float64(denom)*10000) / 100
}
