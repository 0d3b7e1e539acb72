package domain

// Subscription is the slice of the subscriptions module this engine
// needs to resolve a new-subscription event to a user.
type Subscription struct {
	ID     int64
	UserID int64
}

// Payment is the slice of the payments module used for job correlation.
type Payment struct {
	ID             int64
	SubscriptionID int64
}
