package nickpolicy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	cases := []struct {
		name     string
		display  string
		suffix   string
		expected string
	}{
		{
			name:     "dot replaced and truncated to leave room for suffix",
			display:  "firstname.lastname",
			suffix:   "-slack",
			expected: "firstname--slack",
		},
		{
			name:     "default suffix used when empty",
			display:  "bob",
			suffix:   "",
			expected: "bob" + DefaultSuffix,
		},
		{
			name:     "short name untouched besides suffix",
			display:  "al",
			suffix:   "-irc",
			expected: "al-irc",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, Derive(c.display, c.suffix))
		})
	}
}

func TestDeriveBaseLength(t *testing.T) {
	suffix := "-slack"
	nick := Derive("firstname.lastname", suffix)
	assert.Equal(t, ServerNickLen, len(nick))
}

func TestDeriveTransliteratesNonASCII(t *testing.T) {
	nick := Derive("éàçü", "-x")
	assert.NotContains(t, nick, "é")
}
