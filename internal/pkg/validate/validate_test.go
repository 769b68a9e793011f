package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "a.b+tag@gmail.com", "x_y@sub.example.org"} {
		assert.True(t, Email(ok), ok)
	}
	for _, bad := range []string{"", "ab", "a@b", "a b@c.com", "a%b@c.com", "a=b@c.com", "a@@b.com", "@b.com"} {
		assert.False(t, Email(bad), bad)
	}
}

func TestStruct_ReportsFailedFields(t *testing.T) {
	type req struct {
		Email string `validate:"required,rewardemail"`
		Code  string `validate:"required,len=4,numeric"`
	}
	assert.NoError(t, Struct(req{Email: "a@b.com", Code: "0042"}))

	err := Struct(req{Email: "nope", Code: "12"})
	assert.ErrorContains(t, err, "field 'Email' failed 'rewardemail'")
	assert.ErrorContains(t, err, "field 'Code' failed 'len'")
}

func TestEmail_AgreesWithTag(t *testing.T) {
	type req struct {
		Email string `validate:"required,rewardemail"`
	}
	for _, in := range []string{"a@b.co", "", "a%b@c.com", "a b@c.com", "x_y@sub.example.org"} {
		assert.Equal(t, Struct(req{Email: in}) == nil, Email(in), in)
	}
}
