package enums

// CreditEntryType distinguishes ledger rows that raise a customer's balance
// (invoice credit) from ones that settle it (payment).
type CreditEntryType string

const (
	CreditEntryCredit  CreditEntryType = "credit"
	CreditEntryPayment CreditEntryType = "payment"
)

// String implements fmt.Stringer.
func (t CreditEntryType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known CreditEntryType.
func (t CreditEntryType) IsValid() bool {
	return t == CreditEntryCredit || t == CreditEntryPayment
}
