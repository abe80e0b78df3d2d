package models

// Identity is the authenticated LMS account, resolved once per run.
type Identity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
