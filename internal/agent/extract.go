package agent

import (
	"regexp"
	"strings"
)

// triggerKeywords is the coarse pre-filter applied to a lower-cased reply
// before any extraction happens.
var triggerKeywords = []string{"status", "balance", "maxima", "mxid", "send ", "history"}

// commandPrefixes lists what an inline code span must start with to be run.
// "send " keeps its trailing space so a bare `send` is ignored.
var commandPrefixes = []string{
	"status", "balance", "block", "network", "coins", "keys",
	"getaddress", "send ", "history", "maxima", "maxcontacts",
	"mxid_", "get_maxima", "vault", "backup", "mds",
}

var codeSpan = regexp.MustCompile("`([^`]+)`")

// LooksLikeCommand reports whether reply may contain node commands: it
// mentions execute_command or one of the trigger keywords, ignoring case.
func LooksLikeCommand(reply string) bool {
	lower := strings.ToLower(reply)
	if strings.Contains(lower, "execute_command") {
		return true
	}
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ExtractCommands returns the inline code spans of reply that start with a
// known command prefix, in reading order. Prefix matching is case-sensitive
// and duplicates are kept.
func ExtractCommands(reply string) []string {
	var out []string
	for _, line := range strings.Split(reply, "\n") {
		if !strings.Contains(line, "`") {
			continue
		}
		for _, m := range codeSpan.FindAllStringSubmatch(line, -1) {
			if hasCommandPrefix(m[1]) {
				out = append(out, m[1])
			}
		}
	}
	return out
}

func hasCommandPrefix(s string) bool {
	for _, p := range commandPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
