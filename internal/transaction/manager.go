package transaction

import "github.com/google/uuid"

// IDGenerator returns a fresh unique transaction id.
type IDGenerator func() string

// Manager creates transactions.
type Manager struct {
	newID IDGenerator
}

// NewManager returns a Manager using gen for ids, or random v4 UUIDs when gen is nil.
func NewManager(gen IDGenerator) *Manager {
	if gen == nil {
		gen = uuid.NewString
	}
	return &Manager{newID: gen}
}

// CreateTransaction builds a Transaction from params. A missing transactionId is generated.
func (m *Manager) CreateTransaction(params map[string]any) Transaction {
	t := FromMap(params)
	if t.TransactionID == "" {
		t.TransactionID = m.newID()
	}
	return t
}
