package audit

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Reference string    `json:"reference"`
	AccountID int64     `json:"account_id"`
	Amount    int64     `json:"amount"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddString("event_type", e.EventType)
	if e.Reference != "" {
		enc.AddString("reference", e.Reference)
	}
	enc.AddInt64("account_id", e.AccountID)
	enc.AddInt64("amount", e.Amount)
	enc.AddString("status", e.Status)
	return enc.AddReflected("details", e.Details)
}

// Logger writes one structured event per ledger mutation or failure.
type Logger struct {
	log *zap.Logger
}

func NewLogger(base *zap.Logger) *Logger {
	if base == nil {
		base = zap.NewNop()
	}
	return &Logger{log: base.Named("audit")}
}

func (a *Logger) LogEntry(reference string, accountID int64, kind string, amount, balanceAfter int64) {
	a.log.Info("ledger entry", zap.Object("event", Event{
		Timestamp: time.Now(),
		EventType: "ENTRY",
		Reference: reference,
		AccountID: accountID,
		Amount:    amount,
		Status:    "SUCCESS",
		Details: map[string]any{
			"kind":          kind,
			"balance_after": balanceAfter,
		},
	}))
}

func (a *Logger) LogError(operation string, accountID int64, err error) {
	a.log.Warn("ledger operation failed", zap.Object("event", Event{
		Timestamp: time.Now(),
		EventType: operation,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	}))
}

func (a *Logger) LogReconciliation(reference string, referrerID, referredID, amount int64, cause error) {
	a.log.Error("referral reward needs reconciliation", zap.Object("event", Event{
		Timestamp: time.Now(),
		EventType: "RECONCILIATION",
		Reference: reference,
		AccountID: referrerID,
		Amount:    amount,
		Status:    "PENDING",
		Details: map[string]any{
			"referred_id": referredID,
			"error":       cause.Error(),
		},
	}))
}

func (a *Logger) LogOperation(operation string, accountID int64, details string) {
	a.log.Info("ledger operation", zap.Object("event", Event{
		Timestamp: time.Now(),
		EventType: operation,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	}))
}
