package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	TaskLedgerIntegrity = "ledger:integrity"
	TaskBankAutoMatch   = "bank:automatch"
	TaskReportsWarmup   = "reports:warmup"
)

// DefaultLookbackDays bounds the statements an auto-match sweep considers.
const DefaultLookbackDays = 31

// IntegrityPayload selects the tenants to verify. Zero means every tenant.
type IntegrityPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// AutoMatchPayload selects the tenants and the statement window to sweep.
type AutoMatchPayload struct {
	CompanyID    int64 `json:"company_id,omitempty"`
	LookbackDays int   `json:"lookback_days,omitempty"`
}

// WarmupPayload selects the tenants whose reports are rebuilt. AsOf defaults
// to the current day.
type WarmupPayload struct {
	CompanyID int64     `json:"company_id,omitempty"`
	AsOf      time.Time `json:"as_of,omitempty"`
}

func NewIntegrityTask(payload IntegrityPayload) (*asynq.Task, error) {
	return newTask(TaskLedgerIntegrity, payload)
}

func NewAutoMatchTask(payload AutoMatchPayload) (*asynq.Task, error) {
	return newTask(TaskBankAutoMatch, payload)
}

func NewWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	return newTask(TaskReportsWarmup, payload)
}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}
