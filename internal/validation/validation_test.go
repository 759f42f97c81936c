package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilename_ValidAndInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		want  string
		errIs error
	}{
		{name: "empty", in: "", want: "", errIs: ErrInvalidFilename},
		{name: "simple", in: "report.pdf", want: "report.pdf", errIs: nil},
		{name: "dot", in: ".", want: "", errIs: ErrInvalidFilename},
		{name: "dotdot", in: "..", want: "", errIs: ErrInvalidFilename},
		{name: "nested path stripped to base", in: "a/b/report.pdf", want: "report.pdf", errIs: nil},
		{name: "traversal stripped to base", in: "../../etc/passwd", want: "passwd", errIs: nil},
		{name: "absolute path stripped to base", in: "/etc/passwd", want: "passwd", errIs: nil},
		{name: "backslash traversal", in: `..\..\evil.exe`, want: "", errIs: ErrInvalidFilename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filename(tt.in)
			assert.Equal(t, tt.want, got)
			assert.ErrorIs(t, err, tt.errIs)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, "..")
		})
	}
}
