package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmailAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Donor Name <Donor@Example.com>", "donor@example.com"},
		{"<donor@example.com>", "donor@example.com"},
		{"donor@example.com", "donor@example.com"},
		{"  DONOR@EXAMPLE.COM  ", "donor@example.com"},
		{"\"Name, With Comma\" <a@b.org>", "a@b.org"},
		{"", ""},
		{"Broken <no-closing", "broken <no-closing"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractEmailAddress(tt.in), "input %q", tt.in)
	}
}
