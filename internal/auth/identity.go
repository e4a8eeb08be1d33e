package auth

// Identity is who a request acts as. It is one of Authenticated, Guest or
// External; the unexported method keeps the set closed.
type Identity interface {
	identity()
}

// Authenticated carries a verified session: the user ID from the token
// subject and the display name recorded at sign-in.
type Authenticated struct {
	UserID string
	Name   string
}

// Guest is a caller without credentials. It only exists when the dev
// profile allows unauthenticated writes. DisplayName is whatever name the
// request supplied and may be empty.
type Guest struct {
	DisplayName string
}

// External is an assertion from an identity provider (a verified Google or
// Firebase ID token, or the OAuth2 callback). Email is the join key.
type External struct {
	Email   string
	Name    string
	Picture string
}

func (Authenticated) identity() {}
func (Guest) identity()         {}
func (External) identity()      {}
