// Package command implements the CommandParser (spec.md §4.7): detection
// and dispatch of "/"-prefixed commands typed into a Chat channel.
//
// The table is closed (spec.md §9), but unlike an IRC callback table an
// unrecognized command name is never silently relayed: spec.md §4.7/§9
// require any "/"-prefixed line to be consumed and answered with help
// text, recognized or not.
package command

import "regexp"

// Prefix marks a line of Chat text as a command rather than a message.
const Prefix = "/"

var reCommand = regexp.MustCompile(`^(\w+)(?:\s+(.*))?$`)

// Context is the external collaborator a Handler uses to answer a
// command; it is implemented by whatever owns the live registry/channel
// map state the command needs to read.
type Context interface {
	// OnlineUsers returns the display names of every Chat user currently
	// bridged into channel, via an active shadow client.
	OnlineUsers(channel string) ([]string, error)
	// Topic returns the current IRC topic of channel's mapped IRC side.
	Topic(channel string) (string, error)
}

// Handler answers one command, given the Chat channel it was typed in
// and the remainder of the line after the command name.
type Handler func(ctx Context, channel, arg string) (string, error)

// Table is the closed dispatch table of recognized commands.
var Table = map[string]Handler{
	"online": handleOnline,
	"topic":  handleTopic,
	"help":   handleHelp,
}

// IsCommand reports whether text is a command line, and returns the
// command name and argument if so. A prefixed line whose remainder does
// not start with a command word is still a command line, with an empty
// name.
func IsCommand(text string) (name, arg string, ok bool) {
	if len(text) == 0 || text[:len(Prefix)] != Prefix {
		return "", "", false
	}

	rest := text[len(Prefix):]
	m := reCommand.FindStringSubmatch(rest)
	if m == nil {
		return "", "", true
	}

	return m[1], m[2], true
}

// Dispatch parses text as a command and, if it is one, runs the matching
// Handler or falls back to handleHelp when the name isn't recognized.
// ok is false only when text isn't a command line at all; callers
// should relay text as-is in that case, and never otherwise, since an
// unrecognized command name is still fully handled here (it just gets
// the help reply).
func Dispatch(ctx Context, channel, text string) (reply string, ok bool, err error) {
	name, arg, isCmd := IsCommand(text)
	if !isCmd {
		return "", false, nil
	}

	handler, known := Table[name]
	if !known {
		handler = handleHelp
	}

	reply, err = handler(ctx, channel, arg)
	return reply, true, err
}

func handleOnline(ctx Context, channel, arg string) (string, error) {
	users, err := ctx.OnlineUsers(channel)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "no one else is online in this channel", nil
	}

	out := users[0]
	for _, u := range users[1:] {
		out += ", " + u
	}
	return "online: " + out, nil
}

func handleTopic(ctx Context, channel, arg string) (string, error) {
	topic, err := ctx.Topic(channel)
	if err != nil {
		return "", err
	}
	if topic == "" {
		return "no topic set", nil
	}
	return "topic: " + topic, nil
}

func handleHelp(ctx Context, channel, arg string) (string, error) {
	return "available commands: /online, /topic, /help", nil
}
