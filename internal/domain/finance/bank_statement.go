package finance

import (
	"time"

	"github.com/vextrus/vextrus-erp-sub014/internal/domain/shared/valueobject"
)

// BankStatement is an imported statement used to reconcile completed payments
type BankStatement struct {
	ID            string
	AccountNumber string
	StatementDate time.Time
	Transactions  []BankTransaction
}

// BankTransaction is one credited line of a bank statement
type BankTransaction struct {
	ID          string
	Reference   string
	Amount      valueobject.Money
	ValueDate   time.Time
	Description string
}

// FindMatch returns the first transaction whose reference is one of refs and
// whose amount equals amount. Empty references never match.
func (s BankStatement) FindMatch(amount valueobject.Money, refs ...string) (BankTransaction, bool) {
	for _, tx := range s.Transactions {
		if tx.Reference == "" || !tx.Amount.Equals(amount) {
			continue
		}
		for _, ref := range refs {
			if ref != "" && ref == tx.Reference {
				return tx, true
			}
		}
	}
	return BankTransaction{}, false
}
