// Package form validates contact form input and builds the submission record
// that is handed to every destination.
package form

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/conneroisu/sitekit/internal/errors"
)

// Field policies. Exactly one is active for a validator.
const (
	// PolicyMessage requires name, email and message; phone is optional.
	PolicyMessage = "message"
	// PolicyPhone requires name, email and phone; message is optional.
	PolicyPhone = "phone"
)

// DefaultSource tags every record built without an explicit source.
const DefaultSource = "website_contact_form"

// Visitor-facing validation messages.
const (
	MsgRequiredFields = "Please fill in all required fields."
	MsgInvalidEmail   = "Please enter a valid email address."
)

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// emailPattern accepts local@domain.tld; it is not an RFC 5322 parser.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Fields is the raw form input.
type Fields struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

// Normalize trims surrounding whitespace and converts every field to
// Unicode NFC.
func (f Fields) Normalize() Fields {
	return Fields{
		Name:    clean(f.Name),
		Email:   clean(f.Email),
		Phone:   clean(f.Phone),
		Message: strings.TrimSpace(norm.NFC.String(f.Message)),
	}
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// Record is the normalized submission sent to destinations. It is built
// once per submit and never modified.
type Record struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// Validator checks required fields and email shape under one policy.
type Validator struct {
	policy string
}

// NewValidator returns a validator for policy, which must be
// PolicyMessage or PolicyPhone. Anything else falls back to
// PolicyMessage.
func NewValidator(policy string) *Validator {
	if policy != PolicyPhone {
		policy = PolicyMessage
	}
	return &Validator{policy: policy}
}

// Policy returns the active field policy.
func (v *Validator) Policy() string {
	return v.policy
}

// Required lists the fields that must be non-empty.
func (v *Validator) Required() []string {
	if v.policy == PolicyPhone {
		return []string{"name", "email", "phone"}
	}
	return []string{"name", "email", "message"}
}

// Validate returns a validation error when a required field is empty or the
// email is malformed. Fields are normalized before checking.
func (v *Validator) Validate(fields Fields) error {
	f := fields.Normalize()

	if f.Name == "" || f.Email == "" {
		return errors.NewValidationError(errors.ErrCodeRequiredFields, MsgRequiredFields)
	}

	switch v.policy {
	case PolicyPhone:
		if f.Phone == "" {
			return errors.NewValidationError(errors.ErrCodeRequiredFields, MsgRequiredFields).
				WithContext("field", "phone")
		}
	default:
		if f.Message == "" {
			return errors.NewValidationError(errors.ErrCodeRequiredFields, MsgRequiredFields).
				WithContext("field", "message")
		}
	}

	if !ValidEmail(f.Email) {
		return errors.NewValidationError(errors.ErrCodeInvalidEmail, MsgInvalidEmail).
			WithContext("field", "email")
	}

	return nil
}

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Builder stamps records with a source tag and the current time.
type Builder struct {
	source string
	now    func() time.Time
}

// NewBuilder returns a Builder. A nil clock uses time.Now.
func NewBuilder(source string, now func() time.Time) *Builder {
	if source == "" {
		source = DefaultSource
	}
	if now == nil {
		now = time.Now
	}
	return &Builder{source: source, now: now}
}

// Build creates the record for already validated fields.
func (b *Builder) Build(fields Fields) Record {
	f := fields.Normalize()
	return Record{
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Message:   f.Message,
		Timestamp: b.now().UTC().Format(TimestampLayout),
		Source:    b.source,
	}
}
