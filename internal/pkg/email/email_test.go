package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"A.B+tag@Gmail.com":     "ab@gmail.com",
		"ab@gmail.com":          "ab@gmail.com",
		"c.a.r.o.l@gmail.com":   "carol@gmail.com",
		"alice+promo@gmail.com": "alice@gmail.com",
		"x+y+z@Example.ORG":     "x@example.org",
		"first.last@my.co.uk":   "firstlast@my.co.uk",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestNormalize_Collides(t *testing.T) {
	assert.Equal(t, Normalize("ab@gmail.com"), Normalize("A.B+tag@Gmail.com"))
	assert.Equal(t, Normalize("a.b+x@gmail.com"), Normalize("ab@gmail.com"))
}

func TestNormalize_DomainDotsKept(t *testing.T) {
	assert.Equal(t, "ab@mail.example.com", Normalize("a.b@mail.example.com"))
}
