package core

import "fmt"

const responseFormat = `Return ONLY this JSON format:
{
    "status": "SAFE|SUSPICIOUS|PHISHING",
    "confidence": 0-100,
    "label": "Brief classification",
    "message": "Detailed explanation",
    "indicators": ["list", "of", "detected", "warning", "signs"]
}`

const emailPromptFormat = `Analyze this email for phishing indicators and return ONLY a valid JSON response:

From: %s
Subject: %s
Body: %s

Analyze for:
1. Sender authenticity and domain spoofing
2. Urgency and pressure tactics
3. Suspicious links or attachments
4. Grammar and spelling errors
5. Request for sensitive information
6. Impersonation of legitimate services

%s`

const urlPromptFormat = `Analyze this URL for phishing or malicious intent and return ONLY a valid JSON response:

URL: %s

Check for:
1. Domain spoofing (similar to legitimate sites)
2. Suspicious TLDs and subdomains
3. URL shortening services
4. Suspicious path patterns
5. HTTPS usage and certificate validity indicators
6. Known malicious domains

%s`

// EmailPrompt builds the judgment prompt for an email. body is passed
// separately so callers can hand in a truncated copy.
func EmailPrompt(email EmailRequest, body string) string {
	return fmt.Sprintf(emailPromptFormat, email.From, email.Subject, body, responseFormat)
}

// URLPrompt builds the judgment prompt for a URL
func URLPrompt(url string) string {
	return fmt.Sprintf(urlPromptFormat, url, responseFormat)
}
