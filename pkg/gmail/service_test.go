package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageHeaders(t *testing.T) {
	raw := string(BuildMessage("me@example.com", "donor@example.com", "Thank you", "body", "", ""))

	assert.True(t, strings.HasPrefix(raw, "From: me@example.com\r\n"))
	assert.Contains(t, raw, "To: donor@example.com\r\n")
	assert.Contains(t, raw, "MIME-Version: 1.0\r\n")
	assert.Contains(t, raw, "Content-Type: multipart/alternative; boundary=\"mobilize_alt_boundary\"")

	encoded := "=?utf-8?B?" + base64.StdEncoding.EncodeToString([]byte("Thank you")) + "?="
	assert.Contains(t, raw, "Subject: "+encoded+"\r\n")
}

func TestBuildMessagePlainTextAlwaysPresent(t *testing.T) {
	raw := string(BuildMessage("me@example.com", "to@example.com", "s", "line one\nline two", "", ""))

	assert.Contains(t, raw, "Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\nline one\nline two")
	// Without explicit HTML, the text is converted to an HTML alternative.
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.Contains(t, raw, "line one<br>line two")
	assert.True(t, strings.HasSuffix(raw, "--mobilize_alt_boundary--"))
}

func TestBuildMessageUsesProvidedHTML(t *testing.T) {
	raw := string(BuildMessage("me@example.com", "to@example.com", "s", "plain", "<p>rich</p>", ""))

	assert.Contains(t, raw, "<p>rich</p>")
	assert.NotContains(t, raw, "plain<br>")
}

func TestBuildMessageAppendsSignature(t *testing.T) {
	raw := string(BuildMessage("me@example.com", "to@example.com", "s", "plain", "<p>rich</p>", "<p>Best, Me</p>"))

	idx := strings.Index(raw, "<p>rich</p>")
	require.Greater(t, idx, 0)
	sigIdx := strings.Index(raw, "<div class=\"signature\"><p>Best, Me</p></div>")
	require.Greater(t, sigIdx, idx)
}

func TestBuildMessageNoSignatureBlockWhenEmpty(t *testing.T) {
	raw := string(BuildMessage("me@example.com", "to@example.com", "s", "plain", "<p>rich</p>", ""))
	assert.NotContains(t, raw, "class=\"signature\"")
}
