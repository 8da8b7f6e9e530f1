package tui

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/efebarandurmaz/minichat/internal/node"
)

// RenderResult writes a status line followed by the result as indented JSON.
func (s *Styles) RenderResult(w io.Writer, command string, res node.Result) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, s.StatusBadge(res.Status)+" "+s.Command.Render(command))
	fmt.Fprintln(w, s.CodeBlock.Render(string(out)))
	if !res.Status && res.Error != "" {
		fmt.Fprintln(w, s.Error.Render(res.Error))
	}
	return nil
}
