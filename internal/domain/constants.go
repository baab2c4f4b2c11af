package domain

const (
	// Transaction statuses
	TxStatusPendingPayout     = "pending_payout"
	TxStatusPaidToTeacher     = "paid_to_teacher"
	TxStatusRevertedToLearner = "reverted_to_learner"

	SplitModeSingle = "single"
	SplitModeEqual  = "equal"

	SessionStatusAccepted  = "accepted"
	SessionStatusCompleted = "completed"

	ComplaintStatusOpen     = "open"
	ComplaintStatusResolved = "resolved"

	// MaxParticipants counts the primary learner plus group members.
	MaxParticipants = 10

	DefaultReferenceCurrency = "NPR"
)
