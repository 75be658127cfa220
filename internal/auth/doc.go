// Package auth drives the interactive login state machine.
//
// States move Unauthenticated, AwaitingVerificationCode, optionally
// AwaitingTwoFactor, then Authenticated. Progress is persisted in the session
// record after every step so an interrupted login resumes where it stopped:
// a pending verification code is asked for again without requesting a new
// one, and a signed-in but unregistered device only repeats registration.
package auth
