package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Programming Fundamentals", "Programming_Fundamentals"},
		{"  padded  ", "padded"},
		{"Lập trình C", "L_p_tr_nh_C"},
		{"report v1.2-final_draft", "report_v1.2-final_draft"},
		{"///", "unnamed"},
		{"", "unnamed"},
		{"__already__", "already"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "input %q", tt.in)
	}
}
