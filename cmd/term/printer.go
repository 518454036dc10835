package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/MegaGrindStone/stream-chat/internal/conversation"
	"github.com/fatih/color"
)

// printer renders store changes on a terminal. Since every content event carries the whole response,
// it prints only what was added since the last change, and reprints the message when the text was
// replaced by something that does not extend it.
type printer struct {
	out io.Writer

	user      *color.Color
	assistant *color.Color
	notice    *color.Color

	mu      sync.Mutex
	id      string
	printed string
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:       out,
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen),
		notice:    color.New(color.FgYellow),
	}
}

func (p *printer) observe(ch conversation.Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ch.Kind {
	case conversation.ChangeAppend:
		um := ch.Messages[len(ch.Messages)-2]
		am := ch.Messages[len(ch.Messages)-1]
		p.user.Fprintf(p.out, "you> %s\n", um.Text)
		p.assistant.Fprint(p.out, "ai> ")
		p.id, p.printed = am.ID, ""
	case conversation.ChangeText:
		if len(ch.Messages) == 0 {
			return
		}
		m := ch.Messages[len(ch.Messages)-1]
		if m.ID != p.id {
			p.id, p.printed = m.ID, ""
		}
		if strings.HasPrefix(m.Text, p.printed) {
			p.assistant.Fprint(p.out, m.Text[len(p.printed):])
		} else {
			p.notice.Fprint(p.out, "\n~ ")
			p.assistant.Fprint(p.out, m.Text)
		}
		p.printed = m.Text
	case conversation.ChangePending:
		if !ch.Pending {
			fmt.Fprintln(p.out)
		}
	case conversation.ChangeClear:
		p.id, p.printed = "", ""
		p.notice.Fprintln(p.out, "(history cleared)")
	}
}
