package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

// LedgerVerifier recomputes stored account totals from posted lines.
type LedgerVerifier interface {
	Verify(ctx context.Context, companyID int64) ([]journals.Drift, error)
}

// LedgerOpsCLI offers operational helpers over a company ledger.
type LedgerOpsCLI struct {
	ledger LedgerVerifier
}

// NewLedgerOpsCLI constructs a new helper instance.
func NewLedgerOpsCLI(ledger LedgerVerifier) (*LedgerOpsCLI, error) {
	if ledger == nil {
		return nil, errors.New("ledger cli: verifier required")
	}
	return &LedgerOpsCLI{ledger: ledger}, nil
}

// VerifyOptions defines available flags for the verify command.
type VerifyOptions struct {
	CompanyID  int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// VerifySummary describes the JSON response for verify.
type VerifySummary struct {
	OK        bool             `json:"ok"`
	CompanyID int64            `json:"company_id"`
	Drift     []journals.Drift `json:"drift"`
}

// VerifyCommand checks the stored totals of one company and prints the
// outcome. It exits 10 when any account drifted.
func (c *LedgerOpsCLI) VerifyCommand(ctx context.Context, opts VerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CompanyID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "ledger verify: --company is required and must be positive")
		return 1
	}
	drift, err := c.ledger.Verify(ctx, opts.CompanyID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "ledger verify: %v\n", err)
		return 1
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].AccountID < drift[j].AccountID })
	if drift == nil {
		drift = []journals.Drift{}
	}
	if opts.JSONOutput {
		summary := VerifySummary{OK: len(drift) == 0, CompanyID: opts.CompanyID, Drift: drift}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "ledger verify: encode json: %v\n", err)
			return 1
		}
	} else {
		renderVerifyHuman(opts.Stdout, opts.CompanyID, drift)
	}
	if len(drift) > 0 {
		return 10
	}
	return 0
}

func renderVerifyHuman(out io.Writer, companyID int64, drift []journals.Drift) {
	_, _ = fmt.Fprintf(out, "Ledger verification for company %d\n", companyID)
	if len(drift) == 0 {
		_, _ = fmt.Fprintln(out, "Stored totals match posted lines.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d account(s) drifted:\n", len(drift))
	for _, d := range drift {
		_, _ = fmt.Fprintf(out, " - account %d stored %s/%s posted %s/%s\n",
			d.AccountID, d.StoredDebit.StringFixed(2), d.StoredCredit.StringFixed(2),
			d.PostedDebit.StringFixed(2), d.PostedCredit.StringFixed(2))
	}
}
