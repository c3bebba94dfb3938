package shared

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "path separators", in: "AC/DC - Back In Black", want: "AC-DC - Back In Black"},
		{name: "windows separators", in: "a\\b:c", want: "a-b-c"},
		{name: "wildcards and quotes", in: `what? "why" *now*`, want: `what- -why- -now-`},
		{name: "surrounding whitespace", in: "  title  ", want: "title"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
