//go:build property

package form

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/sitekit/internal/errors"
)

// TestValidationProperties checks the required-field and email rules for
// arbitrary input.
func TestValidationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	v := NewValidator(PolicyMessage)

	properties.Property("missing required field always fails", prop.ForAll(
		func(name, email, message string, drop int) bool {
			fields := Fields{Name: "n" + name, Email: "a@b.co", Message: "m" + message}
			switch drop {
			case 0:
				fields.Name = ""
			case 1:
				fields.Email = ""
			default:
				fields.Message = ""
			}
			err := v.Validate(fields)
			return errors.IsValidation(err) && errors.UserMessage(err) == MsgRequiredFields
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(0, 2),
	))

	properties.Property("emails without @ fail", prop.ForAll(
		func(local string) bool {
			email := strings.ReplaceAll(local, "@", "") + ".com"
			return !ValidEmail(email)
		},
		gen.AlphaString(),
	))

	properties.Property("emails without a dot after @ fail", prop.ForAll(
		func(local, domain string) bool {
			if local == "" || domain == "" {
				return true
			}
			return !ValidEmail(local + "@" + strings.ReplaceAll(domain, ".", ""))
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("well formed emails pass", prop.ForAll(
		func(local, domain, tld string) bool {
			return ValidEmail(local + "@" + domain + "." + tld)
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("building never changes the source tag", prop.ForAll(
		func(name, message string) bool {
			rec := NewBuilder("", nil).Build(Fields{Name: name, Email: "a@b.co", Message: message})
			return rec.Source == DefaultSource && rec.Email == "a@b.co"
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
