package telegram

import "testing"

func TestChangedChars(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want int
	}{
		{name: "identical", old: "hello", new: "hello", want: 0},
		{name: "append", old: "hello", new: "hello world", want: 6},
		{name: "truncate", old: "hello world", new: "hello", want: 6},
		{name: "substitution", old: "hello", new: "hallo", want: 1},
		{name: "from empty", old: "", new: "abc", want: 3},
		{name: "to empty", old: "abc", new: "", want: 3},
		// A single insertion at the front shifts every position; the
		// metric counts that as many changes on purpose.
		{name: "prefix insertion over-counts", old: "abc", new: "xabc", want: 4},
		{name: "multibyte runes", old: "привет", new: "привёт", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := changedChars(tt.old, tt.new); got != tt.want {
				t.Errorf("changedChars(%q, %q) = %d, want %d", tt.old, tt.new, got, tt.want)
			}
		})
	}
}
