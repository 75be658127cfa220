package session

import (
	"fmt"
	"time"
)

// LoginStep is the persisted position in the login state machine.
type LoginStep int

const (
	// StepNone means no login is in progress.
	StepNone LoginStep = iota
	// StepAwaitingCode means a verification code was sent and the phone code
	// hash is stored.
	StepAwaitingCode
	// StepReady means the account key is stored and the device is registered.
	StepReady
)

var stepNames = map[LoginStep]string{
	StepNone:         "none",
	StepAwaitingCode: "awaiting_code",
	StepReady:        "ready",
}

func (s LoginStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("LoginStep(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s LoginStep) MarshalText() ([]byte, error) {
	name, ok := stepNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown login step %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LoginStep) UnmarshalText(text []byte) error {
	for step, name := range stepNames {
		if name == string(text) {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown login step %q", text)
}

// Profile is the denormalized account profile kept with the session.
type Profile struct {
	UserGUID   string `json:"user_guid"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Username   string `json:"username,omitempty"`
	Bio        string `json:"bio,omitempty"`
	IsVerified bool   `json:"is_verified,omitempty"`
	IsDeleted  bool   `json:"is_deleted,omitempty"`
}

// Record is the persisted session state.
type Record struct {
	Phone     string    `json:"phone"`
	LoginStep LoginStep `json:"login_step"`
	LoginDate time.Time `json:"login_date,omitzero"`

	// TmpKey and AuthKey are mutually exclusive. Use SetAuthKey.
	TmpKey  string `json:"tmp_key,omitempty"`
	AuthKey string `json:"auth_key,omitempty"`
	// PrivateKey is the PKCS#1 PEM of the key used at sign-in.
	PrivateKey string `json:"private_key,omitempty"`

	// Valid only while LoginStep is StepAwaitingCode.
	PhoneCodeHash   string `json:"phone_code_hash,omitempty"`
	CodeDigitsCount int    `json:"code_digits_count,omitempty"`

	UserAgent string   `json:"user_agent"`
	Profile   *Profile `json:"profile,omitempty"`
}

// SetAuthKey stores the long-lived key and drops the tmp key.
func (r *Record) SetAuthKey(key string) {
	r.AuthKey = key
	r.TmpKey = ""
}

// ActiveKey returns the key payloads are encrypted with and whether it is the
// short-lived tmp key.
func (r *Record) ActiveKey() (key string, tmp bool) {
	if r.AuthKey != "" {
		return r.AuthKey, false
	}
	return r.TmpKey, true
}

// ClearCode drops the ephemeral verification code fields.
func (r *Record) ClearCode() {
	r.PhoneCodeHash = ""
	r.CodeDigitsCount = 0
}

func (r *Record) clone() Record {
	out := *r
	if r.Profile != nil {
		p := *r.Profile
		out.Profile = &p
	}
	return out
}
