package auth

// State is the login progress of a session.
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingVerificationCode
	StateAwaitingTwoFactor
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAwaitingVerificationCode:
		return "AwaitingVerificationCode"
	case StateAwaitingTwoFactor:
		return "AwaitingTwoFactor"
	case StateAuthenticated:
		return "Authenticated"
	default:
		return "Unknown"
	}
}

// Server-side sub-statuses carried in data.status.
const (
	statusOK             = "OK"
	statusSendPassKey    = "SendPassKey"
	statusInvalidPassKey = "InvalidPassKey"
)

// AuthError reasons.
const (
	ReasonCodeLength       = "CodeLength"
	ReasonCodeIsInvalid    = "CodeIsInvalid"
	ReasonPassKeyIsInvalid = "PassKeyIsInvalid"
	ReasonNoPendingCode    = "NoPendingCode"
	ReasonTooManyAttempts  = "TooManyAttempts"
)
