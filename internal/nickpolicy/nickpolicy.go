// Package nickpolicy implements the deterministic function from a Chat
// display name to an IRC nickname (spec.md §4.2).
package nickpolicy

import (
	"strings"

	"github.com/mozillazg/go-unidecode"
)

// ServerNickLen is the nickname length every derived nick is fitted to.
// The derived nick is truncated to ServerNickLen-len(suffix) characters
// before the suffix is appended.
const ServerNickLen = 16

// DefaultSuffix is used when a Config does not override it.
const DefaultSuffix = "-slack"

// Derive converts a Chat display name into an IRC nickname: transliterate
// non-ASCII characters, replace "." with "-", truncate to leave room for
// suffix, then append suffix.
//
// The unidecode pass is a supplement to the literal rule in spec.md §4.2,
// which is silent on non-ASCII display names; without it, names outside
// the IRC-safe charset would produce invalid nicknames.
func Derive(displayName, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}

	name := displayName
	if ascii := unidecode.Unidecode(name); ascii != "" {
		name = ascii
	}

	name = strings.ReplaceAll(name, ".", "-")

	maxBase := ServerNickLen - len(suffix)
	if maxBase < 0 {
		maxBase = 0
	}
	if len(name) > maxBase {
		name = name[:maxBase]
	}

	return name + suffix
}
