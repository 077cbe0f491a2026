package bid

// transitions maps each status to the set of statuses it may move to.
// Cancelled and completed are terminal.
var transitions = map[Status][]Status{
	StatusDraft:                 {StatusPublished, StatusCancelled},
	StatusPublished:             {StatusOpen, StatusOnHold, StatusCancelled},
	StatusOpen:                  {StatusUnderEvaluation, StatusExtended, StatusOnHold, StatusCancelled},
	StatusUnderEvaluation:       {StatusAwarded, StatusRejected, StatusAwaitingClarification, StatusUnderLegalReview, StatusNegotiation, StatusOnHold, StatusCancelled},
	StatusAwaitingClarification: {StatusUnderEvaluation, StatusRejected, StatusCancelled},
	StatusUnderLegalReview:      {StatusAwarded, StatusNegotiation, StatusRejected, StatusCancelled},
	StatusNegotiation:           {StatusAwarded, StatusUnderLegalReview, StatusRejected, StatusCancelled},
	StatusExtended:              {StatusOpen, StatusCancelled},
	StatusOnHold:                {StatusOpen, StatusUnderEvaluation, StatusCancelled},
	StatusAwarded:               {StatusCompleted, StatusCancelled},
	StatusRejected:              {StatusUnderEvaluation, StatusCancelled},
	StatusCancelled:             {},
	StatusCompleted:             {},
}

// IsValidTransition reports whether moving from one status to another is legal.
func IsValidTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal next statuses for a given status.
func NextStatuses(from Status) []Status {
	return append([]Status(nil), transitions[from]...)
}

// IsTerminal reports whether a status allows no further moves.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Amount thresholds gating the award path.
const (
	directorAwardThreshold = 50000
	legalReviewThreshold   = 100000
	vpAwardThreshold       = 200000
)

// ValidateStatusChange checks the transition table plus the role and amount
// rules that gate awarding and cancelling. Awards above the legal-review
// threshold must reach awarded from under_legal_review.
func ValidateStatusChange(current, next Status, role string, amount float64) error {
	if !IsValidTransition(current, next) {
		return ErrInvalidTransition
	}
	if next != StatusAwarded && next != StatusCancelled {
		return nil
	}
	if !roleIn(role, RoleManager, RoleDirector, RoleAdmin, RoleVP) {
		return ErrInsufficientPermission
	}
	if next == StatusCancelled {
		if !roleIn(role, RoleManager, RoleDirector, RoleAdmin) {
			return ErrInsufficientPermission
		}
		return nil
	}
	switch {
	case amount > vpAwardThreshold:
		if !roleIn(role, RoleVP, RoleAdmin) {
			return ErrInsufficientPermission
		}
	case amount > directorAwardThreshold:
		if !roleIn(role, RoleDirector, RoleAdmin) {
			return ErrInsufficientPermission
		}
	default:
		if !roleIn(role, RoleManager, RoleDirector, RoleAdmin) {
			return ErrInsufficientPermission
		}
	}
	if amount > legalReviewThreshold && current != StatusUnderLegalReview {
		return ErrApprovalRequired
	}
	return nil
}

// Context carries the flags RecommendedNextStatus consults.
type Context struct {
	HasSubmissions        bool
	EvaluationComplete    bool
	LegalApproved         bool
	NegotiationComplete   bool
	ClarificationProvided bool
}

// RecommendedNextStatus suggests the next status for the given state and
// context flags. It returns the empty status when no move is recommended.
func RecommendedNextStatus(current Status, ctx Context) Status {
	switch current {
	case StatusDraft:
		return StatusPublished
	case StatusPublished:
		return StatusOpen
	case StatusOpen:
		if ctx.HasSubmissions {
			return StatusUnderEvaluation
		}
		return StatusExtended
	case StatusUnderEvaluation:
		if ctx.EvaluationComplete {
			return StatusAwarded
		}
	case StatusAwaitingClarification:
		if ctx.ClarificationProvided {
			return StatusUnderEvaluation
		}
	case StatusUnderLegalReview:
		if ctx.LegalApproved {
			return StatusAwarded
		}
	case StatusNegotiation:
		if ctx.NegotiationComplete {
			return StatusAwarded
		}
	case StatusExtended:
		return StatusOpen
	case StatusOnHold:
		return StatusOpen
	case StatusAwarded:
		return StatusCompleted
	}
	return ""
}

func roleIn(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
