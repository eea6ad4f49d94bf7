// Package texttransform implements the bidirectional text conversion
// between Chat's markup and IRC's plain text (spec.md §4.1).
//
// Both directions are pure functions over an explicit snapshot of
// whatever registry/channel-map state they need (spec.md §9: "TextTransform
// and NickPolicy are pure functions over the current registry snapshot"),
// grounded on the regex-substitution pipeline style of
// insomniacslk-irc-slack's event_handler.go (UID->name rewriting) and
// ocf-discordbridge's ParseText (mention/channel/role substitution via
// chained regexp.ReplaceAllStringFunc passes).
package texttransform

import (
	"regexp"
	"strings"
)

// ChannelLookup resolves a Chat channel ID to its bare name (no leading #).
type ChannelLookup func(id string) (name string, ok bool)

// UserLookup resolves a Chat user ID to its display name.
type UserLookup func(id string) (name string, ok bool)

// ShadowNickLookup resolves a Chat display name (or mention word) to the
// IRC nickname of that user's shadow client, if one is currently active.
type ShadowNickLookup func(word string) (nick string, ok bool)

// ShadowNameLookup is the reverse of ShadowNickLookup: given an IRC
// nickname, returns the original Chat display name (slackName).
type ShadowNameLookup func(nick string) (name string, ok bool)

// Highlighter wraps occurrences of a Chat member's display name in
// whatever highlight form the caller wants IRC->Chat relayed text to use.
// It is an external helper per spec.md §4.1.
type Highlighter func(name string) string

// Deps bundles the collaborators ParseText needs. Emoji is a read-only
// shortcode table (spec.md's EmojiTable).
type Deps struct {
	Channel ChannelLookup
	User    UserLookup
	Shadow  ShadowNickLookup
	Emoji   map[string]string
}

var (
	reChannelRef = regexp.MustCompile(`<#([^|>]+)(?:\|([^>]+))?>`)
	reUserRef    = regexp.MustCompile(`<@([^|>]+)(?:\|([^>]+))?>`)
	reRawLink    = regexp.MustCompile(`<([^|>!][^|>]*)>`)
	reCommandRef = regexp.MustCompile(`<!([^|>]+)(?:\|([^>]+))?>`)
	reEmoji      = regexp.MustCompile(`:([a-zA-Z0-9_+-]+):`)
	reMention    = regexp.MustCompile(`@(\w+)`)
	reResidual   = regexp.MustCompile(`<([^|>]*)\|([^>]+)>`)
	reNewlines   = regexp.MustCompile(`\r\n|\r|\n`)
)

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
)

var broadcastTokens = strings.NewReplacer(
	"<!channel>", "@channel",
	"<!group>", "@group",
	"<!everyone>", "@everyone",
)

// ParseText converts Chat markup to IRC plain text, applying the ten rules
// of spec.md §4.1 in order; later rules see earlier substitutions.
func ParseText(text string, deps Deps) string {
	// 1. collapse newlines to a single space.
	text = reNewlines.ReplaceAllString(text, " ")

	// 2. decode the three HTML entities.
	text = htmlEntities.Replace(text)

	// 3. broadcast tokens.
	text = broadcastTokens.Replace(text)

	// 4. channel references.
	text = reChannelRef.ReplaceAllStringFunc(text, func(m string) string {
		sub := reChannelRef.FindStringSubmatch(m)
		id, alias := sub[1], sub[2]
		if alias != "" {
			return "#" + alias
		}
		if deps.Channel != nil {
			if name, ok := deps.Channel(id); ok {
				return "#" + name
			}
		}
		return m
	})

	// 5. user references.
	text = reUserRef.ReplaceAllStringFunc(text, func(m string) string {
		sub := reUserRef.FindStringSubmatch(m)
		id, alias := sub[1], sub[2]
		if alias != "" {
			return "@" + alias
		}
		if deps.User != nil {
			if name, ok := deps.User(id); ok {
				return "@" + name
			}
		}
		return m
	})

	// 6. raw links, lacking a pipe and not starting with "!".
	text = reRawLink.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[1 : len(m)-1]
		return inner
	})

	// 7. other command tokens.
	text = reCommandRef.ReplaceAllStringFunc(text, func(m string) string {
		sub := reCommandRef.FindStringSubmatch(m)
		cmd, label := sub[1], sub[2]
		if label != "" {
			return label
		}
		return cmd
	})

	// 8. emoji shortcodes.
	text = reEmoji.ReplaceAllStringFunc(text, func(m string) string {
		sub := reEmoji.FindStringSubmatch(m)
		code := sub[1]
		if deps.Emoji != nil {
			if v, ok := deps.Emoji[code]; ok {
				return v
			}
		}
		return m
	})

	// 9. @word mentions matching an existing shadow nick.
	if deps.Shadow != nil {
		text = reMention.ReplaceAllStringFunc(text, func(m string) string {
			word := m[1:]
			if nick, ok := deps.Shadow(word); ok {
				return nick
			}
			return m
		})
	}

	// 10. final pass on residual <anything|readable>.
	text = reResidual.ReplaceAllString(text, "$2")

	return text
}

// shadowNickPattern matches the shape of a shadow nick: the suffix,
// optionally followed by one digit (the way IRC disambiguates nick
// collisions), optionally preceded by '@'.
func shadowNickPattern(suffix string) *regexp.Regexp {
	return regexp.MustCompile(`@?(\S+` + regexp.QuoteMeta(suffix) + `\d?)`)
}

// ReplaceUsernames rewrites IRC shadow nicks found in text back to the
// Chat display name of the shadow they belong to (spec.md §4.1
// "replaceUsernames"). suffix is the configured shadow nick suffix.
func ReplaceUsernames(text, suffix string, lookup ShadowNameLookup) string {
	if lookup == nil || suffix == "" {
		return text
	}

	re := shadowNickPattern(suffix)
	return re.ReplaceAllStringFunc(text, func(m string) string {
		sub := re.FindStringSubmatch(m)
		nick := sub[1]
		if name, ok := lookup(nick); ok {
			return name
		}
		return m
	})
}

// MapSlackUsers wraps every occurrence of a Chat channel member's display
// name in the highlight form supplied by highlight (spec.md §4.1
// "mapSlackUsers").
func MapSlackUsers(text string, members []string, highlight Highlighter) string {
	if highlight == nil {
		return text
	}

	for _, name := range members {
		if name == "" {
			continue
		}
		text = strings.ReplaceAll(text, name, highlight(name))
	}

	return text
}
