package conversation

import (
	"regexp"
	"strings"
)

type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdOption
	CmdHint
	CmdStart
	CmdSkip
	CmdStop
	CmdResume
	CmdHelp
)

func (k CommandKind) String() string {
	switch k {
	case CmdOption:
		return "option"
	case CmdHint:
		return "hint"
	case CmdStart:
		return "start"
	case CmdSkip:
		return "skip"
	case CmdStop:
		return "stop"
	case CmdResume:
		return "resume"
	case CmdHelp:
		return "help"
	}
	return "text"
}

// Command is the parsed meaning of one inbound message.
type Command struct {
	Kind   CommandKind
	Option string // upper-case letter for CmdOption
}

var (
	optionPattern = regexp.MustCompile(`^(?:(?:option|answer|ans)\s*[:\-]?\s*)?\(?([abcd])\)?[.)]?$`)
	spaces        = regexp.MustCompile(`\s+`)
)

var keywords = map[string]CommandKind{
	"hint":         CmdHint,
	"h":            CmdHint,
	"?":            CmdHint,
	"clue":         CmdHint,
	"another hint": CmdHint,
	"hint please":  CmdHint,
	"go":           CmdStart,
	"drill":        CmdStart,
	"next":         CmdStart,
	"practice":     CmdStart,
	"quiz me":      CmdStart,
	"let's go":     CmdStart,
	"lets go":      CmdStart,
	"skip":         CmdSkip,
	"cancel":       CmdSkip,
	"stop":         CmdStop,
	"unsubscribe":  CmdStop,
	"resume":       CmdResume,
	"subscribe":    CmdResume,
	"help":         CmdHelp,
	"commands":     CmdHelp,
}

// ParseCommand classifies free text. "start" resumes an inactive user and
// starts a drill for an active one.
func ParseCommand(text string, active bool) Command {
	s := strings.ToLower(strings.TrimSpace(text))
	s = spaces.ReplaceAllString(s, " ")
	s = strings.TrimRight(s, "!")
	if s == "" {
		return Command{Kind: CmdUnknown}
	}

	if m := optionPattern.FindStringSubmatch(s); m != nil {
		return Command{Kind: CmdOption, Option: strings.ToUpper(m[1])}
	}
	if s == "start" {
		if active {
			return Command{Kind: CmdStart}
		}
		return Command{Kind: CmdResume}
	}
	if kind, ok := keywords[s]; ok {
		return Command{Kind: kind}
	}
	return Command{Kind: CmdUnknown}
}
