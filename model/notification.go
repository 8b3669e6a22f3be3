package model

// Notification is an outbound message intent consumed by the excluded
// notification sender. Admin escalations carry ToAdmin in addition to the
// owning recipient.
type Notification struct {
	Recipient  User
	ToAdmin    bool
	Message    string
	ResourceID string
}
