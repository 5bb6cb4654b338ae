package shared

import base "github.com/odyssey-erp/odyssey-ledger/internal/shared"

var (
	// ErrAccountNotFound indicates a missing account in the tenant.
	ErrAccountNotFound = base.NotFound("ACCOUNT_NOT_FOUND", "accounting: account not found")
	// ErrParentNotFound indicates the requested parent account is missing.
	ErrParentNotFound = base.NotFound("PARENT_NOT_FOUND", "accounting: parent account not found")
	// ErrDuplicateCode indicates the code is taken within the tenant.
	ErrDuplicateCode = base.Duplicate("DUPLICATE_CODE", "accounting: account code already exists")
	// ErrTypeMismatch indicates a child type differs from its parent.
	ErrTypeMismatch = base.Validation("TYPE_MISMATCH", "accounting: account type must match parent type")
	// ErrCycle indicates the parent chain does not terminate.
	ErrCycle = base.Validation("ACCOUNT_CYCLE", "accounting: parent assignment would create a cycle")
	// ErrCoreAccountProtected indicates core accounts are immutable.
	ErrCoreAccountProtected = base.Precondition("CORE_ACCOUNT_PROTECTED", "accounting: core accounts cannot be modified or deleted")
	// ErrHasPostingsOrChildren blocks deletion of used accounts.
	ErrHasPostingsOrChildren = base.Precondition("HAS_POSTINGS_OR_CHILDREN", "accounting: account has postings or children")

	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = base.Validation("UNBALANCED", "accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = base.Validation("TOO_FEW_LINES", "accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line without exactly one non-zero side.
	ErrInvalidLine = base.Validation("INVALID_LINE", "accounting: each line needs exactly one non-zero side")
	// ErrPostedByRequired indicates a posted entry without an actor.
	ErrPostedByRequired = base.Validation("POSTED_BY_REQUIRED", "accounting: posting actor required")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = base.NotFound("JOURNAL_NOT_FOUND", "accounting: journal entry not found")
	// ErrAlreadyPosted indicates the entry left Draft.
	ErrAlreadyPosted = base.Precondition("ALREADY_POSTED", "accounting: journal entry already posted")
	// ErrNotPosted indicates the action needs a posted entry.
	ErrNotPosted = base.Precondition("NOT_POSTED", "accounting: journal entry is not posted")
	// ErrAlreadyReversed indicates a reversal exists for the entry.
	ErrAlreadyReversed = base.Precondition("ALREADY_REVERSED", "accounting: journal entry already reversed")
	// ErrInvariantBreach indicates a system-generated entry failed validation.
	ErrInvariantBreach = base.NewError(base.ErrInvariant, "LEDGER_INVARIANT", "accounting: generated journal violates ledger invariants")

	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = base.NotFound("MAPPING_NOT_FOUND", "accounting: account mapping not found")
	// ErrMissingAccount indicates a mapped code has no account in the tenant.
	ErrMissingAccount = base.Precondition("MISSING_ACCOUNT", "accounting: mapped account missing")
)
