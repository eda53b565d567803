package wallet

import "time"

// Balance encapsulates available funds for an account holder.
type Balance struct {
	OwnerID string
	Amount  int64
	AsOf    time.Time
}

// AccountCode is the ledger account that holds an identity's funds.
func AccountCode(ownerID string) string {
	return "wallet:" + ownerID
}
