package domain

import "fmt"

// Status is shared by deposits and withdrawals. Values match the persisted SMALLINT.
type Status int16

const (
	StatusCreated   Status = 0
	StatusWaiting   Status = 1
	StatusPaid      Status = 2
	StatusExpired   Status = 3
	StatusReproved  Status = 4
	StatusCancelled Status = 5
	StatusError     Status = 6
)

var statusNames = map[Status]string{
	StatusCreated:   "created",
	StatusWaiting:   "waiting",
	StatusPaid:      "paid",
	StatusExpired:   "expired",
	StatusReproved:  "reproved",
	StatusCancelled: "cancelled",
	StatusError:     "error",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for st, name := range statusNames {
		if name == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", b)
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusPaid, StatusExpired, StatusReproved, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to next. Terminal states are final.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	switch s {
	case StatusCreated:
		return next == StatusWaiting || next.IsTerminal()
	case StatusWaiting:
		return next.IsTerminal()
	default:
		return false
	}
}

// GatewayStatus is the status string sent by the gateway on callbacks and payout responses.
type GatewayStatus string

const (
	GatewayStatusPaid     GatewayStatus = "paid"
	GatewayStatusReproved GatewayStatus = "reproved"
	GatewayStatusRejected GatewayStatus = "rejected"
)

// ParseGatewayStatus maps a gateway callback status onto the local enum.
func ParseGatewayStatus(s string) (Status, error) {
	switch GatewayStatus(s) {
	case GatewayStatusPaid:
		return StatusPaid, nil
	case GatewayStatusReproved:
		return StatusReproved, nil
	case GatewayStatusRejected:
		return StatusError, nil
	default:
		return 0, fmt.Errorf("ParseGatewayStatus: %q: %w", s, ErrInvalidStatus)
	}
}
