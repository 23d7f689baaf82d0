package storage

// Decision is the outcome of an access-mediation check.
//
// The zero value is Deny: a decision that was never computed can never be
// mistaken for an approval, and a denial is always accompanied by a
// *StorageError describing the reason.
type Decision int

const (
	// Deny rejects the operation. The associated error carries the reason.
	Deny Decision = iota

	// Allow permits the operation with an unmodified view of the target.
	Allow

	// AllowRedacted permits a read, but the returned content must first pass
	// through the metadata redactor.
	AllowRedacted
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowRedacted:
		return "allow-redacted"
	default:
		return "deny"
	}
}
