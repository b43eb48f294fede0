package guru

import (
	"strings"

	"github.com/crowdguru/backend/internal/models"
)

// Commands understood by the guru. Anything else prefixed with a slash gets
// the help text; plain text is treated as an answer attempt.
const (
	CommandAsk    = "tellme"
	CommandAssign = "askme"
)

// Event is the narrow inbound message shape the controller accepts: a sender
// identity, an optional command name, and the argument text. It decouples the
// core from any particular transport representation.
type Event struct {
	Sender  string
	Command string
	Arg     string
}

// ParseText turns a raw chat line into an Event. A leading "/word" becomes
// the command; the sender address is reduced to its bare form.
func ParseText(sender, text string) Event {
	ev := Event{Sender: models.Bare(sender)}
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		cmd, arg, _ := strings.Cut(text[1:], " ")
		ev.Command = strings.ToLower(cmd)
		ev.Arg = strings.TrimSpace(arg)
		return ev
	}
	ev.Arg = text
	return ev
}
