package filter

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestExtractText_PlainMessage(t *testing.T) {
	msg := readMessage(t, "From: a@b.c\r\nSubject: hi\r\n\r\nHello there\r\n")

	text, err := ExtractText(msg)
	require.NoError(t, err)
	assert.Equal(t, "Hello there\r\n", text)
}

func TestExtractText_QuotedPrintableBody(t *testing.T) {
	msg := readMessage(t, "Content-Type: text/plain; charset=utf-8\r\n"+
		"Content-Transfer-Encoding: quoted-printable\r\n\r\n"+
		"Verify your acc=\r\nount at caf=C3=A9\r\n")

	text, err := ExtractText(msg)
	require.NoError(t, err)
	assert.Equal(t, "Verify your account at café\r\n", text)
}

func TestExtractText_NestedMultipart(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=outer\r\n\r\n" +
		"--outer\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n\r\n" +
		"--inner\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		"VXJnZW50OiB1cGRhdGUg\r\neW91ciBwYXNzd29yZA==\r\n" +
		"--inner\r\n" +
		"Content-Type: text/html\r\n\r\n" +
		"<p>Urgent</p>\r\n" +
		"--inner--\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf\r\n\r\n" +
		"%PDF-1.4\r\n" +
		"--outer--\r\n"

	text, err := ExtractText(readMessage(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "Urgent: update your password\n\n", text)
}

func TestExtractText_NoTextPart(t *testing.T) {
	raw := "Content-Type: multipart/mixed; boundary=b\r\n\r\n" +
		"--b\r\nContent-Type: image/png\r\n\r\nPNG\r\n--b--\r\n"

	text, err := ExtractText(readMessage(t, raw))
	require.NoError(t, err)
	assert.Equal(t, NoTextPlaceholder, text)
}

func TestParseMessage_DecodesHeaders(t *testing.T) {
	raw := "From: =?utf-8?q?S=C3=A9curit=C3=A9?= <alerts@bank.example>\r\n" +
		"Subject: =?utf-8?b?Q29tcHRlIGJsb3F1w6k=?=\r\n\r\nbody\r\n"

	email, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Sécurité <alerts@bank.example>", email.From)
	assert.Equal(t, "Compte bloqué", email.Subject)
	assert.Equal(t, "body\r\n", email.Body)
}

func TestParseMessage_Malformed(t *testing.T) {
	_, err := ParseMessage(strings.NewReader("this is not a header\r\n"))
	assert.Error(t, err)
}
