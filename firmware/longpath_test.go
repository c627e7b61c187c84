package firmware

import "testing"

func TestLongPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`C:\fw\nxt.rfw`, `\\?\C:\fw\nxt.rfw`},
		{`\\server\share\nxt.rfw`, `\\?\UNC\server\share\nxt.rfw`},
		{`\\?\C:\fw\nxt.rfw`, `\\?\C:\fw\nxt.rfw`},
		{`\\?\UNC\server\share\nxt.rfw`, `\\?\UNC\server\share\nxt.rfw`},
	}
	for _, tt := range tests {
		if got := longPath(tt.in); got != tt.want {
			t.Errorf("longPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
