package thoughtfilter

import (
	"strings"
	"testing"
)

// collect runs all chunks through a fresh filter and appends the flush tail.
func collect(chunks ...string) string {
	f := New()
	var out strings.Builder
	for _, chunk := range chunks {
		out.WriteString(f.Feed(chunk))
	}
	out.WriteString(f.Flush())
	return out.String()
}

func TestFeedSingleChunk(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"tag pair", "<think>hidden</think>visible", "visible"},
		{"tag pair uppercase", "<THINK>hidden</THINK>visible", "visible"},
		{"leading text", "before<reasoning>secret</reasoning>after", "beforeafter"},
		{"multiple tags", "<think>a</think>x<cot>b</cot>y", "xy"},
		{"fenced block", "```think\nchain of thought\n```answer", "answer"},
		{"fenced cot", "pre```cot reasoning```post", "prepost"},
		{"plain text", "no markup at all here, nothing to strip", "no markup at all here, nothing to strip"},
		{"fence with longer language", "```python\nprint(1)\n```", "```python\nprint(1)\n```"},
		{"cot prefix of longer word", "see ```cotton``` fabric", "see ```cotton``` fabric"},
		{"hyphenated tag", "<chain-of-thought>deep</chain-of-thought>out", "out"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := collect(tc.input); got != tc.want {
				t.Errorf("collect(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSplitInvariance(t *testing.T) {
	inputs := []string{
		"<think>hidden</think>visible",
		"start<analysis>internal notes</analysis>middle<cot>more</cot>end",
		"```think\nstep one\nstep two\n```the answer is 42",
		"mixed <THINK>upper</think> case",
		"plain text with <brackets> that are not markers",
		"trailing text after ```cot x``` fence",
		"```cotton is a fabric, not a thought```",
	}
	for _, input := range inputs {
		want := collect(input)
		for split := 1; split < len(input); split++ {
			got := collect(input[:split], input[split:])
			if got != want {
				t.Fatalf("split at %d of %q: got %q, want %q", split, input, got, want)
			}
		}
		// Feed one byte at a time as the worst case.
		var chunks []string
		for i := 0; i < len(input); i++ {
			chunks = append(chunks, input[i:i+1])
		}
		if got := collect(chunks...); got != want {
			t.Fatalf("byte-wise feed of %q: got %q, want %q", input, got, want)
		}
	}
}

func TestFlushDropsUnterminatedMarkup(t *testing.T) {
	f := New()
	out := f.Feed("answer<think>this never closes and keeps going")
	out += f.Flush()
	if out != "answer" {
		t.Errorf("expected unterminated tag content dropped, got %q", out)
	}

	f = New()
	out = f.Feed("```reasoning\nnever closed")
	out += f.Flush()
	if out != "" {
		t.Errorf("expected unterminated fence content dropped, got %q", out)
	}
}

func TestFlushReturnsBufferedPlainText(t *testing.T) {
	f := New()
	emitted := f.Feed("short")
	tail := f.Flush()
	if emitted+tail != "short" {
		t.Errorf("expected full text across feed+flush, got %q + %q", emitted, tail)
	}
	if f.Flush() != "" {
		t.Error("second flush should return nothing")
	}
}

func TestFeedHoldsBackMarkerWindow(t *testing.T) {
	f := New()
	// A partial opening tag at the chunk end must never be emitted.
	out := f.Feed("hello <thi")
	if strings.Contains(out, "<") {
		t.Errorf("partial marker leaked into output: %q", out)
	}
	out += f.Feed("nk>secret</think> world")
	out += f.Flush()
	if out != "hello  world" {
		t.Errorf("expected %q, got %q", "hello  world", out)
	}
}

func TestFilterThoughts(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"tag pair", "<think>hidden</think>visible", "visible"},
		{"fenced block", "answer\n```cot\nreasoning\n```\n", "answer"},
		{"stray open tag", "<think>no closing tag, text continues", "no closing tag, text continues"},
		{"case insensitive", "<Analysis>x</Analysis>kept", "kept"},
		{"whitespace trimmed", "  \n<think>a</think> result \n", "result"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FilterThoughts(tc.input); got != tc.want {
				t.Errorf("FilterThoughts(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
