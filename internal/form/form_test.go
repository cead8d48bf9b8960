package form

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitekit/internal/errors"
)

func TestValidatorMessagePolicy(t *testing.T) {
	v := NewValidator(PolicyMessage)
	assert.Equal(t, []string{"name", "email", "message"}, v.Required())

	tests := []struct {
		name    string
		fields  Fields
		wantMsg string
	}{
		{"valid without phone", Fields{Name: "Ada", Email: "ada@example.com", Message: "Hi"}, ""},
		{"missing name", Fields{Email: "ada@example.com", Message: "Hi"}, MsgRequiredFields},
		{"missing email", Fields{Name: "Ada", Message: "Hi"}, MsgRequiredFields},
		{"missing message", Fields{Name: "Ada", Email: "ada@example.com"}, MsgRequiredFields},
		{"whitespace only message", Fields{Name: "Ada", Email: "ada@example.com", Message: "  \n\t"}, MsgRequiredFields},
		{"no at sign", Fields{Name: "Ada", Email: "ada.example.com", Message: "Hi"}, MsgInvalidEmail},
		{"no dot after at", Fields{Name: "Ada", Email: "ada@example", Message: "Hi"}, MsgInvalidEmail},
		{"space inside", Fields{Name: "Ada", Email: "ada lovelace@example.com", Message: "Hi"}, MsgInvalidEmail},
		{"surrounding space is trimmed", Fields{Name: "Ada", Email: "  ada@example.com ", Message: "Hi"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.fields)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsValidation(err))
			assert.Equal(t, tt.wantMsg, errors.UserMessage(err))
		})
	}
}

func TestValidatorPhonePolicy(t *testing.T) {
	v := NewValidator(PolicyPhone)
	assert.Equal(t, PolicyPhone, v.Policy())

	assert.NoError(t, v.Validate(Fields{Name: "Ada", Email: "ada@example.com", Phone: "555-0100"}))

	err := v.Validate(Fields{Name: "Ada", Email: "ada@example.com", Message: "Hi"})
	require.Error(t, err)
	assert.Equal(t, MsgRequiredFields, errors.UserMessage(err))
}

func TestUnknownPolicyFallsBackToMessage(t *testing.T) {
	assert.Equal(t, PolicyMessage, NewValidator("both").Policy())
}

func TestValidEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "first.last+tag@sub.example.org", "x@y.z"} {
		assert.True(t, ValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "plain", "@example.com", "a@", "a@b", "a@@b.com", "a b@c.de"} {
		assert.False(t, ValidEmail(bad), bad)
	}
}

func TestBuilderBuild(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
	b := NewBuilder("", func() time.Time { return fixed })

	rec := b.Build(Fields{Name: " Ada ", Email: "ada@example.com", Message: "Hello"})

	assert.Equal(t, Record{
		Name:      "Ada",
		Email:     "ada@example.com",
		Phone:     "",
		Message:   "Hello",
		Timestamp: "2025-03-04T04:06:07.890Z",
		Source:    DefaultSource,
	}, rec)
}

func TestNormalizeComposesUnicode(t *testing.T) {
	f := Fields{Name: "Jose\u0301"}.Normalize()
	assert.Equal(t, "Jos\u00e9", f.Name)
}
