package filter

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"

	"github.com/mikey/phishguard/internal/core"
)

// NoTextPlaceholder stands in for the body of a message without any text/plain part
const NoTextPlaceholder = "[No text content found in multipart message]"

// maxMultipartDepth bounds recursion into nested multipart bodies
const maxMultipartDepth = 5

var wordDecoder = &mime.WordDecoder{}

// ParseMessage reads an RFC 5322 message into a detection request. The
// sender comes from the From header and the subject is MIME-decoded.
func ParseMessage(r io.Reader) (core.EmailRequest, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return core.EmailRequest{}, fmt.Errorf("failed to parse email message: %w", err)
	}

	body, err := ExtractText(msg)
	if err != nil {
		return core.EmailRequest{}, err
	}

	return core.EmailRequest{
		From:    decodeHeader(msg.Header.Get("From")),
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Body:    body,
	}, nil
}

// ExtractText returns the text/plain content of a message. Multipart bodies
// are walked recursively and transfer encodings are undone.
func ExtractText(msg *mail.Message) (string, error) {
	header := textproto.MIMEHeader(msg.Header)
	text, found, err := extractPart(header, msg.Body, 0)
	if err != nil {
		return "", err
	}
	if !found {
		return NoTextPlaceholder, nil
	}
	return text, nil
}

// extractPart reports whether any text was found beneath one MIME entity
func extractPart(header textproto.MIMEHeader, body io.Reader, depth int) (string, bool, error) {
	contentType := header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if contentType == "" || err != nil {
		// RFC 2045 default is text/plain
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" || depth >= maxMultipartDepth {
			return "", false, nil
		}
		return extractMultipart(multipart.NewReader(body, boundary), depth)
	}

	if mediaType != "text/plain" {
		return "", false, nil
	}

	data, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", false, fmt.Errorf("failed to read message body: %w", err)
	}
	return string(data), true, nil
}

func extractMultipart(mr *multipart.Reader, depth int) (string, bool, error) {
	var textContent bytes.Buffer
	found := false

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// keep whatever was readable before the malformed part
			break
		}

		// NextPart already undoes quoted-printable and hides the header
		text, ok, err := extractPart(part.Header, part, depth+1)
		if err != nil {
			continue
		}
		if ok {
			textContent.WriteString(text)
			textContent.WriteString("\n")
			found = true
		}
	}

	return textContent.String(), found, nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// decodeHeader decodes RFC 2047 encoded words, returning the input unchanged
// when it cannot be decoded
func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
