package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
)

type stubVerifier struct {
	drift []journals.Drift
	err   error
}

func (s stubVerifier) Verify(ctx context.Context, companyID int64) ([]journals.Drift, error) {
	return s.drift, s.err
}

func TestVerifyCommandJSONClean(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubVerifier{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.VerifyCommand(context.Background(), VerifyOptions{
		CompanyID:  1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary VerifySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Empty(t, summary.Drift)
}

func TestVerifyCommandReportsDrift(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubVerifier{drift: []journals.Drift{
		{AccountID: 9, StoredDebit: decimal.NewFromInt(5), PostedDebit: decimal.NewFromInt(4)},
		{AccountID: 3, StoredCredit: decimal.NewFromInt(1)},
	}})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.VerifyCommand(context.Background(), VerifyOptions{CompanyID: 1, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "2 account(s) drifted")
	require.Less(t, bytes.Index(stdout.Bytes(), []byte("account 3")), bytes.Index(stdout.Bytes(), []byte("account 9")))
}

func TestVerifyCommandRequiresCompany(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubVerifier{err: errors.New("unused")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.VerifyCommand(context.Background(), VerifyOptions{Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "--company is required")
}

func TestVerifyCommandSurfacesErrors(t *testing.T) {
	cli, err := NewLedgerOpsCLI(stubVerifier{err: errors.New("db down")})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.VerifyCommand(context.Background(), VerifyOptions{CompanyID: 2, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "db down")
}

func TestJobsCLIRejectsUnknownJob(t *testing.T) {
	var unset *JobsCLI
	_, err := unset.Trigger(context.Background(), "ledger:integrity", 1)
	require.ErrorContains(t, err, "client not configured")
	_, err = unset.InspectQueue()
	require.ErrorContains(t, err, "inspector not configured")

	jobsCLI, err := NewJobsCLI("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobsCLI.Close() })
	_, err = jobsCLI.Trigger(context.Background(), "inventory:reval", 1)
	require.ErrorContains(t, err, "unsupported job")
}
