package util

import "testing"

func TestCountTokens(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "single word", in: "hello", want: 1},
		{name: "words separated by space", in: "hello world", want: 2},
		{name: "trailing punctuation counted separately", in: "hello, world!", want: 4},
		{name: "leading and trailing whitespace ignored", in: "  hello world  ", want: 2},
		{name: "only whitespace", in: "   ", want: 0},
		{name: "only punctuation", in: "...", want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountTokens(tt.in); got != tt.want {
				t.Fatalf("CountTokens(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
