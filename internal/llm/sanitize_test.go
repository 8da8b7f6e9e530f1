package llm

import "testing"

func TestStripThinkingTags(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"no tags", "You have 10 Minima.", "You have 10 Minima."},
		{"leading block", "<think>user wants balance</think>Let me check: `balance`", "Let me check: `balance`"},
		{"two blocks", "a <think>x</think>b<think>y</think> c", "a b c"},
		{"unterminated", "Sure. <think>still reasoning", "Sure."},
		{"only thinking", "<think>hmm</think>", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripThinkingTags(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
