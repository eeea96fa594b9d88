package transcript

import "testing"

func TestPunctuationBoundary(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Hello.", true},
		{"Is it?", true},
		{"Stop!", true},
		{"ends with space.   ", true},
		{"no terminator", false},
		{"comma,", false},
		{"", false},
		{"   ", false},
		{"3.5 million", false},
		{"Ünïcödé!", true},
	}

	b := NewPunctuationBoundary("")
	for _, tt := range tests {
		if got := b.IsBoundary(tt.text); got != tt.want {
			t.Errorf("IsBoundary(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestPunctuationBoundary_CustomTerminators(t *testing.T) {
	b := NewPunctuationBoundary("。")

	if !b.IsBoundary("こんにちは。") {
		t.Error("expected ideographic full stop to be a boundary")
	}
	if b.IsBoundary("Hello.") {
		t.Error("expected ASCII period not to be a boundary")
	}
}

func TestPunctuationBoundary_ZeroValue(t *testing.T) {
	var b PunctuationBoundary
	if !b.IsBoundary("done.") {
		t.Error("zero value should fall back to default terminators")
	}
}

func TestBuffer_CommitClearsPending(t *testing.T) {
	var b Buffer
	b.appendFinal("one")
	b.appendFinal("two.")
	if b.Pending != "one two." {
		t.Fatalf("unexpected pending %q", b.Pending)
	}
	if got := b.preview("three"); got != "one two. three" {
		t.Errorf("unexpected preview %q", got)
	}

	b.commit("one two.")
	b.commit("next")
	if b.Full != "one two. next" {
		t.Errorf("unexpected full %q", b.Full)
	}
	if b.Pending != "" {
		t.Errorf("expected pending cleared, got %q", b.Pending)
	}
}
