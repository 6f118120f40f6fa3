package models

import "github.com/google/uuid"

// ensureID assigns a random id before insert when the caller left it zero.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every table the engine owns, in dependency order.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&Product{},
		&Cart{},
		&CartLine{},
		&OrderCounter{},
		&Order{},
		&ShippingRule{},
		&OnlineSaleBatch{},
		&WalletTransaction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
