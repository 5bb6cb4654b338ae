package bank

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	accshared "github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LedgerReader exposes the posted journal data matching runs against.
type LedgerReader interface {
	GetEntry(ctx context.Context, companyID, id int64) (journals.Entry, error)
	Movements(ctx context.Context, companyID int64, accountIDs []int64, r journals.Range) ([]journals.Movement, error)
}

type ChartReader interface {
	GetAccount(ctx context.Context, companyID, id int64) (accounts.Account, error)
	ListAccounts(ctx context.Context, companyID int64, parentID *int64) ([]accounts.Account, error)
}

type MappingResolver interface {
	Current(ctx context.Context, companyID int64) (mappings.Set, error)
}

// Metrics counts reconciled statements. A nil value disables counting.
type Metrics interface {
	AddMatches(auto bool, n int)
}

// DefaultMatchDays bounds how far apart a statement and a journal may be dated.
const DefaultMatchDays = 3

type Service struct {
	repo      Repository
	ledger    LedgerReader
	chart     ChartReader
	mappings  MappingResolver
	locker    shared.Locker
	audit     AuditPort
	logger    *slog.Logger
	metrics   Metrics
	matchDays int
	now       func() time.Time
}

func NewService(repo Repository, ledger LedgerReader, chart ChartReader, mappings MappingResolver, locker shared.Locker, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = shared.NoopLocker{}
	}
	return &Service{
		repo:      repo,
		ledger:    ledger,
		chart:     chart,
		mappings:  mappings,
		locker:    locker,
		audit:     audit,
		logger:    logger,
		matchDays: DefaultMatchDays,
		now:       time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) WithMetrics(m Metrics) {
	s.metrics = m
}

// WithMatchDays sets the auto-match date window. Zero disables the bound.
func (s *Service) WithMatchDays(days int) {
	if days >= 0 {
		s.matchDays = days
	}
}

func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency, nil
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return unit.String(), nil
}

func (s *Service) account(ctx context.Context, companyID int64, in AccountInput) (Account, error) {
	cur, err := normalizeCurrency(in.Currency)
	if err != nil {
		return Account{}, err
	}
	if !shared.HasMoneyPrecision(in.InitialBalance) {
		return Account{}, shared.Invalidf("bank: initial balance has more than two decimals")
	}
	a := Account{
		CompanyID:       companyID,
		AccountNumber:   strings.TrimSpace(in.AccountNumber),
		BankName:        strings.TrimSpace(in.BankName),
		Currency:        cur,
		InitialBalance:  in.InitialBalance,
		LedgerAccountID: in.LedgerAccountID,
		Remark:          strings.TrimSpace(in.Remark),
	}
	if a.AccountNumber == "" || a.BankName == "" {
		return Account{}, shared.Invalidf("bank: account number and bank name required")
	}
	if a.LedgerAccountID != nil {
		if _, err := s.chart.GetAccount(ctx, companyID, *a.LedgerAccountID); err != nil {
			return Account{}, err
		}
	}
	return a, nil
}

func (s *Service) CreateAccount(ctx context.Context, companyID int64, in AccountInput) (Account, error) {
	a, err := s.account(ctx, companyID, in)
	if err != nil {
		return Account{}, err
	}
	a.CreatedAt = s.now()
	created, err := s.repo.InsertBankAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, companyID, 0, "bank.account.create", "bank_account", created.ID, map[string]any{"account_number": created.AccountNumber})
	return created, nil
}

func (s *Service) UpdateAccount(ctx context.Context, companyID, id int64, in AccountInput) (Account, error) {
	current, err := s.repo.GetBankAccount(ctx, companyID, id)
	if err != nil {
		return Account{}, err
	}
	a, err := s.account(ctx, companyID, in)
	if err != nil {
		return Account{}, err
	}
	a.ID = id
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = s.now()
	if err := s.repo.UpdateBankAccount(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (s *Service) DeleteAccount(ctx context.Context, companyID, id int64) error {
	if _, err := s.repo.GetBankAccount(ctx, companyID, id); err != nil {
		return err
	}
	n, err := s.repo.CountStatements(ctx, companyID, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d statements", ErrHasStatements, n)
	}
	return s.repo.DeleteBankAccount(ctx, companyID, id)
}

func (s *Service) GetAccount(ctx context.Context, companyID, id int64) (Account, error) {
	return s.repo.GetBankAccount(ctx, companyID, id)
}

func (s *Service) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	out, err := s.repo.ListBankAccounts(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Account{}
	}
	return out, nil
}

func statementOf(in StatementInput) (Statement, error) {
	if in.Date.IsZero() {
		return Statement{}, shared.Invalidf("bank: statement date required")
	}
	if !in.Amount.IsPositive() || !shared.HasMoneyPrecision(in.Amount) {
		return Statement{}, ErrInvalidAmount
	}
	if !in.Type.Valid() {
		return Statement{}, shared.Invalidf("bank: statement type must be Credit or Debit")
	}
	if in.Balance != nil && !shared.HasMoneyPrecision(*in.Balance) {
		return Statement{}, shared.Invalidf("bank: balance has more than two decimals")
	}
	return Statement{
		Date:        in.Date.Time,
		Amount:      in.Amount,
		Type:        in.Type,
		Balance:     in.Balance,
		Description: strings.TrimSpace(in.Description),
	}, nil
}

func (s *Service) CreateStatement(ctx context.Context, companyID, bankAccountID int64, in StatementInput) (Statement, error) {
	if _, err := s.repo.GetBankAccount(ctx, companyID, bankAccountID); err != nil {
		return Statement{}, err
	}
	st, err := statementOf(in)
	if err != nil {
		return Statement{}, err
	}
	st.CompanyID = companyID
	st.BankAccountID = bankAccountID
	st.CreatedAt = s.now()
	return s.repo.InsertStatement(ctx, st)
}

func (s *Service) UpdateStatement(ctx context.Context, companyID, id int64, in StatementInput) (Statement, error) {
	current, err := s.repo.GetStatement(ctx, companyID, id)
	if err != nil {
		return Statement{}, err
	}
	if current.Reconciled {
		return Statement{}, ErrStatementReconciled
	}
	st, err := statementOf(in)
	if err != nil {
		return Statement{}, err
	}
	st.ID = id
	st.CompanyID = companyID
	st.BankAccountID = current.BankAccountID
	st.CreatedAt = current.CreatedAt
	if err := s.repo.UpdateStatement(ctx, st); err != nil {
		return Statement{}, err
	}
	return st, nil
}

func (s *Service) DeleteStatement(ctx context.Context, companyID, id int64) error {
	current, err := s.repo.GetStatement(ctx, companyID, id)
	if err != nil {
		return err
	}
	if current.Reconciled {
		return ErrStatementReconciled
	}
	return s.repo.DeleteStatement(ctx, companyID, id)
}

func (s *Service) ListStatements(ctx context.Context, companyID, bankAccountID int64, r journals.Range) ([]Statement, error) {
	if _, err := s.repo.GetBankAccount(ctx, companyID, bankAccountID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListStatements(ctx, companyID, bankAccountID, r)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Statement{}
	}
	return out, nil
}

// cashScope resolves the ledger account behind a bank account, falling back
// to the mapped bank-deposit code, plus all of its descendants.
func (s *Service) cashScope(ctx context.Context, a Account) ([]int64, error) {
	chart, err := s.chart.ListAccounts(ctx, a.CompanyID, nil)
	if err != nil {
		return nil, err
	}
	var rootID int64
	if a.LedgerAccountID != nil {
		rootID = *a.LedgerAccountID
	} else {
		set, err := s.mappings.Current(ctx, a.CompanyID)
		if err != nil {
			return nil, err
		}
		for _, acc := range chart {
			if acc.Code == set.Codes.Bank {
				rootID = acc.ID
				break
			}
		}
		if rootID == 0 {
			return nil, fmt.Errorf("%w: bank deposit %s", accshared.ErrMissingAccount, set.Codes.Bank)
		}
	}
	ids := accounts.SubtreeIDs(chart, rootID)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ledger account %d", accshared.ErrAccountNotFound, rootID)
	}
	return ids, nil
}

// snapshot is everything a view or report derives from.
type snapshot struct {
	account    Account
	scope      []int64
	statements []Statement
	candidates []Candidate
	byStmt     map[int64]Reconciliation
	paired     map[int64]bool
}

func (s *Service) snapshot(ctx context.Context, companyID, bankAccountID int64, r journals.Range) (snapshot, error) {
	a, err := s.repo.GetBankAccount(ctx, companyID, bankAccountID)
	if err != nil {
		return snapshot{}, err
	}
	scope, err := s.cashScope(ctx, a)
	if err != nil {
		return snapshot{}, err
	}
	statements, err := s.repo.ListStatements(ctx, companyID, bankAccountID, r)
	if err != nil {
		return snapshot{}, err
	}
	movements, err := s.ledger.Movements(ctx, companyID, scope, r)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{account: a, scope: scope, statements: statements, byStmt: make(map[int64]Reconciliation), paired: map[int64]bool{}}
	for _, m := range movements {
		if c, ok := candidateOf(m); ok {
			snap.candidates = append(snap.candidates, c)
		}
	}
	if len(statements) > 0 {
		ids := make([]int64, len(statements))
		for i, st := range statements {
			ids[i] = st.ID
		}
		recs, err := s.repo.ReconciliationsForStatements(ctx, companyID, ids)
		if err != nil {
			return snapshot{}, err
		}
		for _, rc := range recs {
			snap.byStmt[rc.StatementID] = rc
		}
	}
	if len(snap.candidates) > 0 {
		ids := make([]int64, len(snap.candidates))
		for i, c := range snap.candidates {
			ids[i] = c.EntryID
		}
		if snap.paired, err = s.repo.ReconciledJournals(ctx, companyID, ids); err != nil {
			return snapshot{}, err
		}
	}
	return snap, nil
}

func (snap snapshot) unmatchedStatements() []Statement {
	out := []Statement{}
	for _, st := range snap.statements {
		if _, ok := snap.byStmt[st.ID]; !ok {
			out = append(out, st)
		}
	}
	return out
}

func (snap snapshot) unmatchedJournals() []Candidate {
	out := []Candidate{}
	for _, c := range snap.candidates {
		if !snap.paired[c.EntryID] {
			out = append(out, c)
		}
	}
	return out
}

// View lists matched pairs and both unmatched remainders for the range.
func (s *Service) View(ctx context.Context, companyID, bankAccountID int64, r journals.Range) (View, error) {
	snap, err := s.snapshot(ctx, companyID, bankAccountID, r)
	if err != nil {
		return View{}, err
	}
	byEntry := make(map[int64]Candidate, len(snap.candidates))
	for _, c := range snap.candidates {
		byEntry[c.EntryID] = c
	}
	view := View{
		BankAccountID:       bankAccountID,
		Start:               r.From,
		End:                 r.To,
		Matched:             []Pair{},
		UnmatchedStatements: snap.unmatchedStatements(),
		UnmatchedJournals:   snap.unmatchedJournals(),
	}
	for _, st := range snap.statements {
		rc, ok := snap.byStmt[st.ID]
		if !ok {
			continue
		}
		c, ok := byEntry[rc.JournalID]
		if !ok {
			// Paired with an entry dated outside the range.
			if c, err = s.candidate(ctx, companyID, rc.JournalID, snap.scope); err != nil {
				return View{}, err
			}
		}
		view.Matched = append(view.Matched, Pair{Reconciliation: rc, Statement: st, Journal: c})
	}
	return view, nil
}

func (s *Service) candidate(ctx context.Context, companyID, entryID int64, scope []int64) (Candidate, error) {
	entry, err := s.ledger.GetEntry(ctx, companyID, entryID)
	if err != nil {
		return Candidate{}, err
	}
	in := make(map[int64]bool, len(scope))
	for _, id := range scope {
		in[id] = true
	}
	m := journals.Movement{EntryID: entry.ID, Date: entry.Date, Description: entry.Description, SourceType: entry.SourceType}
	for _, line := range entry.Lines {
		if in[line.AccountID] {
			m.Debit = m.Debit.Add(line.Debit)
			m.Credit = m.Credit.Add(line.Credit)
		}
	}
	c, ok := candidateOf(m)
	if !ok {
		c = Candidate{EntryID: entry.ID, Date: entry.Date, Description: entry.Description, SourceType: entry.SourceType, Amount: decimal.Zero}
	}
	return c, nil
}

// AutoMatch pairs unmatched statements with unmatched journal candidates of
// the same direction and amount inside the date window. A run holds a lock
// per bank account so concurrent runs cannot pair the same rows.
func (s *Service) AutoMatch(ctx context.Context, companyID, bankAccountID int64, r journals.Range, actorID int64) (MatchResult, error) {
	res := MatchResult{RunID: ulid.Make().String(), Reconciliations: []Reconciliation{}}
	err := s.locker.WithLock(ctx, shared.AutoMatchLockKey(companyID, bankAccountID), func(ctx context.Context) error {
		snap, err := s.snapshot(ctx, companyID, bankAccountID, r)
		if err != nil {
			return err
		}
		at := s.now()
		var recs []Reconciliation
		for _, p := range Plan(snap.unmatchedStatements(), snap.unmatchedJournals(), s.matchDays) {
			recs = append(recs, Reconciliation{
				CompanyID:     companyID,
				StatementID:   p.Statement.ID,
				JournalID:     p.Journal.EntryID,
				MatchedAmount: p.Statement.Amount,
				MatchDate:     at,
				Remark:        AutoMatchRemark,
				Auto:          true,
				RunID:         res.RunID,
				CreatedBy:     actorID,
				CreatedAt:     at,
			})
		}
		if len(recs) == 0 {
			return nil
		}
		stored, err := s.repo.InsertReconciliations(ctx, recs)
		if err != nil {
			return err
		}
		res.Reconciliations = stored
		res.MatchedCount = len(stored)
		return nil
	})
	if err != nil {
		return MatchResult{}, err
	}
	s.logger.InfoContext(ctx, "auto-match finished",
		slog.Int64("company_id", companyID),
		slog.Int64("bank_account_id", bankAccountID),
		slog.String("run_id", res.RunID),
		slog.Int("matched", res.MatchedCount))
	s.countMatches(true, res.MatchedCount)
	if res.MatchedCount > 0 {
		s.record(ctx, companyID, actorID, "bank.automatch", "bank_account", bankAccountID, map[string]any{"run_id": res.RunID, "matched": res.MatchedCount})
	}
	return res, nil
}

// Pairing is one planned statement/journal match.
type Pairing struct {
	Statement Statement
	Journal   Candidate
}

// Plan walks statements in (date, id) order and gives each the closest-dated
// unused candidate with the same direction and amount, lowest entry id on a
// tie. maxDays of zero leaves the date distance unbounded.
func Plan(statements []Statement, candidates []Candidate, maxDays int) []Pairing {
	used := make([]bool, len(candidates))
	var out []Pairing
	for _, st := range sortedStatements(statements) {
		best, bestDays := -1, 0
		for i, c := range candidates {
			if used[i] || c.Direction != st.Type || !shared.MoneyEqual(c.Amount, st.Amount) {
				continue
			}
			days := daysApart(st.Date, c.Date)
			if maxDays > 0 && days > maxDays {
				continue
			}
			if best < 0 || days < bestDays || (days == bestDays && c.EntryID < candidates[best].EntryID) {
				best, bestDays = i, days
			}
		}
		if best >= 0 {
			used[best] = true
			out = append(out, Pairing{Statement: st, Journal: candidates[best]})
		}
	}
	return out
}

func sortedStatements(in []Statement) []Statement {
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Statement) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func daysApart(a, b time.Time) int {
	x := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	y := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(x.Sub(y).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}

// CreateReconciliation pairs a statement with a posted journal by hand.
func (s *Service) CreateReconciliation(ctx context.Context, companyID int64, in ReconciliationInput) (Reconciliation, error) {
	st, err := s.repo.GetStatement(ctx, companyID, in.StatementID)
	if err != nil {
		return Reconciliation{}, err
	}
	if st.Reconciled {
		return Reconciliation{}, fmt.Errorf("%w: statement %d", ErrAlreadyReconciled, st.ID)
	}
	if in.BankAccountID != 0 && in.BankAccountID != st.BankAccountID {
		return Reconciliation{}, fmt.Errorf("%w: statement %d is on account %d", ErrStatementOffAccount, st.ID, st.BankAccountID)
	}
	entry, err := s.ledger.GetEntry(ctx, companyID, in.JournalID)
	if err != nil {
		return Reconciliation{}, err
	}
	if !entry.Posted {
		return Reconciliation{}, ErrJournalNotPosted
	}
	paired, err := s.repo.ReconciledJournals(ctx, companyID, []int64{entry.ID})
	if err != nil {
		return Reconciliation{}, err
	}
	if paired[entry.ID] {
		return Reconciliation{}, fmt.Errorf("%w: journal %d", ErrAlreadyReconciled, entry.ID)
	}
	account, err := s.repo.GetBankAccount(ctx, companyID, st.BankAccountID)
	if err != nil {
		return Reconciliation{}, err
	}
	scope, err := s.cashScope(ctx, account)
	if err != nil {
		return Reconciliation{}, err
	}
	c, err := s.candidate(ctx, companyID, entry.ID, scope)
	if err != nil {
		return Reconciliation{}, err
	}
	if c.Amount.IsZero() {
		return Reconciliation{}, fmt.Errorf("%w: journal %d nets to zero on account %d", ErrJournalOffAccount, entry.ID, account.ID)
	}
	amount := st.Amount
	if in.MatchedAmount != nil {
		amount = *in.MatchedAmount
		if !amount.IsPositive() || !shared.HasMoneyPrecision(amount) {
			return Reconciliation{}, ErrInvalidAmount
		}
	}
	at := s.now()
	matchDate := at
	if in.MatchDate != nil && !in.MatchDate.IsZero() {
		matchDate = in.MatchDate.Time
	}
	stored, err := s.repo.InsertReconciliations(ctx, []Reconciliation{{
		CompanyID:     companyID,
		StatementID:   st.ID,
		JournalID:     entry.ID,
		MatchedAmount: amount,
		MatchDate:     matchDate,
		Remark:        strings.TrimSpace(in.Remark),
		CreatedBy:     in.ActorID,
		CreatedAt:     at,
	}})
	if err != nil {
		return Reconciliation{}, err
	}
	rc := stored[0]
	s.countMatches(false, 1)
	s.record(ctx, companyID, in.ActorID, "bank.reconcile", "reconciliation", rc.ID, map[string]any{"statement_id": st.ID, "journal_id": entry.ID})
	return rc, nil
}

// DeleteReconciliation removes the pairing; statement and journal stay.
func (s *Service) DeleteReconciliation(ctx context.Context, companyID, id, actorID int64) error {
	rc, err := s.repo.GetReconciliation(ctx, companyID, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReconciliation(ctx, companyID, id); err != nil {
		return err
	}
	s.record(ctx, companyID, actorID, "bank.unreconcile", "reconciliation", id, map[string]any{"statement_id": rc.StatementID, "journal_id": rc.JournalID})
	return nil
}

// BalanceReport reconciles the bank's balance with the ledger's as of a date.
func (s *Service) BalanceReport(ctx context.Context, companyID, bankAccountID int64, asOf time.Time) (BalanceReport, error) {
	if asOf.IsZero() {
		return BalanceReport{}, shared.Invalidf("bank: as_of required")
	}
	snap, err := s.snapshot(ctx, companyID, bankAccountID, journals.Range{To: asOf})
	if err != nil {
		return BalanceReport{}, err
	}
	rep := BalanceReport{BankAccountID: bankAccountID, AsOf: asOf}

	var reported *decimal.Decimal
	running := snap.account.InitialBalance
	for _, st := range snap.statements {
		running = running.Add(st.Signed())
		if st.Balance != nil {
			reported = st.Balance
		}
	}
	rep.BankBalance = running
	if reported != nil {
		rep.BankBalance = *reported
	}

	for _, c := range snap.candidates {
		if c.Direction == Credit {
			rep.SystemBalance = rep.SystemBalance.Add(c.Amount)
		} else {
			rep.SystemBalance = rep.SystemBalance.Sub(c.Amount)
		}
	}
	for _, c := range snap.unmatchedJournals() {
		if c.Direction == Credit {
			rep.SystemReceivedNotInBank = rep.SystemReceivedNotInBank.Add(c.Amount)
		} else {
			rep.SystemPaidNotInBank = rep.SystemPaidNotInBank.Add(c.Amount)
		}
	}
	for _, st := range snap.unmatchedStatements() {
		if st.Type == Credit {
			rep.BankReceivedNotInSystem = rep.BankReceivedNotInSystem.Add(st.Amount)
		} else {
			rep.BankPaidNotInSystem = rep.BankPaidNotInSystem.Add(st.Amount)
		}
	}
	rep.AdjustedBankBalance = rep.BankBalance.Add(rep.SystemReceivedNotInBank).Sub(rep.SystemPaidNotInBank)
	rep.AdjustedSystemBalance = rep.SystemBalance.Add(rep.BankReceivedNotInSystem).Sub(rep.BankPaidNotInSystem)
	rep.Difference = shared.Money(rep.AdjustedBankBalance.Sub(rep.AdjustedSystemBalance))
	rep.Balanced = rep.Difference.IsZero()
	return rep, nil
}

func (s *Service) countMatches(auto bool, n int) {
	if s.metrics != nil {
		s.metrics.AddMatches(auto, n)
	}
}

func (s *Service) record(ctx context.Context, companyID, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    entity,
		EntityID:  fmt.Sprintf("%d", id),
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
	}
}
