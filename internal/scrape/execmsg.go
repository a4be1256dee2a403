package scrape

import (
	"regexp"
	"strings"
)

var (
	execMessage = regexp.MustCompile(`(?s)^\[([^\]]*)\]\s+Exec \(with response file contents expanded\) in (.*?):\s+(.*)$`)
	envAssign   = regexp.MustCompile(`^([^\s=]+)=([^=\s]*)$`)
)

// EnvVar is one environment assignment of an Exec message.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExecMessage is the compiler command line the AOT task logs before running.
type ExecMessage struct {
	Prefix      string   `json:"prefix"`
	WorkingDir  string   `json:"working_dir"`
	Env         []EnvVar `json:"env,omitempty"`
	CommandLine string   `json:"command_line"`
}

// ParseExecMessage parses
//
//	[<prefix>] Exec (with response file contents expanded) in <dir>: K=V ... <command line>
//
// ok is false for any other message.
func ParseExecMessage(text string) (msg ExecMessage, ok bool) {
	m := execMessage.FindStringSubmatch(strings.TrimRight(text, "\r\n"))
	if m == nil {
		return ExecMessage{}, false
	}
	msg = ExecMessage{Prefix: m[1], WorkingDir: m[2]}

	rest := m[3]
	for {
		rest = strings.TrimLeft(rest, " \t")
		tok, after, found := strings.Cut(rest, " ")
		if !found {
			break
		}
		kv := envAssign.FindStringSubmatch(tok)
		if kv == nil {
			break
		}
		msg.Env = append(msg.Env, EnvVar{Name: kv[1], Value: kv[2]})
		rest = after
	}
	msg.CommandLine = rest
	return msg, true
}
