// Package emoji holds the static shortcode table used by TextTransform to
// expand Chat emoji shortcodes (e.g. ":+1:") into their unicode form.
//
// The real table is an external collaborator (spec.md treats it as out of
// scope, maintained elsewhere), so this package ships a small literal
// subset sufficient to exercise and test the expansion path end to end.
package emoji

// Table maps a shortcode, without colons, to its unicode rendering.
var Table = map[string]string{
	"+1":           "👍",
	"-1":           "👎",
	"thumbsup":     "👍",
	"thumbsdown":   "👎",
	"smile":        "😄",
	"slightly_smiling_face": "🙂",
	"wink":         "😉",
	"laughing":     "😆",
	"heart":        "❤️",
	"tada":         "🎉",
	"fire":         "🔥",
	"eyes":         "👀",
	"wave":         "👋",
	"rocket":       "🚀",
	"white_check_mark": "✅",
	"x":            "❌",
	"100":          "💯",
	"shrug":        "🤷",
	"slack":        "🆘",
}

// Lookup returns the unicode form for shortcode and whether it was found.
func Lookup(shortcode string) (string, bool) {
	v, ok := Table[shortcode]
	return v, ok
}
