package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

// rewardEmail is intentionally looser than RFC 5322 but rejects whitespace,
// '%' and '=' in the local part.
var rewardEmail = regexp.MustCompile(`^[^\s@%=]+@[^\s@]+\.[^\s@]+$`)

func init() {
	_ = v.RegisterValidation("rewardemail", func(fl validator.FieldLevel) bool {
		return rewardEmail.MatchString(fl.Field().String())
	})
}

// Email reports whether s is an acceptable reward email address, using the
// rewardemail tag.
func Email(s string) bool {
	return v.Var(s, "required,rewardemail") == nil
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
