package model

// Identity is the dashboard user resolved from a managed-auth session or a
// self-issued session token. Premium is derived from claims and is not
// authoritative for billing.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email,omitempty"`
	FullName string         `json:"fullName,omitempty"`
	Premium  bool           `json:"premium"`
	Source   IdentitySource `json:"source"`
}
