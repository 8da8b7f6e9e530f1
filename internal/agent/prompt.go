package agent

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/efebarandurmaz/minichat/internal/node"
)

// SystemPrompt is sent with every LLM call. It describes the node command
// set and asks the model to quote commands as inline code.
//
//go:embed system_prompt.md
var SystemPrompt string

const (
	relayPreamble = "[SYSTEM: Commands executed. Results below. Now provide a friendly summary for the user.]"
	relayHeader   = "\n\nI executed the following commands:\n"
)

// Executed pairs a command with its result.
type Executed struct {
	Command string
	Result  node.Result
}

// FormatCommandResult renders one executed command for the follow-up prompt.
func FormatCommandResult(command string, result node.Result) string {
	return "Command: " + command + "\nResult: " + indentJSON(result)
}

// RelayMessage builds the synthetic user turn that hands command results
// back to the LLM.
func RelayMessage(executed []Executed) string {
	var b strings.Builder
	b.WriteString(relayPreamble)
	b.WriteString(relayHeader)
	for _, e := range executed {
		b.WriteString(FormatCommandResult(e.Command, e.Result))
		b.WriteString("\n")
	}
	return b.String()
}

func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
