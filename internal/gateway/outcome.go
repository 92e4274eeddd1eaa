package gateway

import "strings"

// Outcome classifies a payout status reported by the gateway.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePaid
	OutcomeReproved
	OutcomeRejected
)

// ClassifyPayout maps a payout status onto an Outcome. Statuses the gateway
// may report while still processing, and unrecognised ones, are pending.
func ClassifyPayout(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "approved":
		return OutcomePaid
	case "reproved":
		return OutcomeReproved
	case "rejected":
		return OutcomeRejected
	default:
		return OutcomePending
	}
}
