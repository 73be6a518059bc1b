package core

import "encoding/json"

// urlDisplayLen is how many characters of a URL appear in activity feeds
const urlDisplayLen = 50

// DisplayText derives the human-readable label of a stored event: the
// subject line for emails, the leading characters of the input otherwise
func DisplayText(detectionType DetectionType, inputData string) string {
	if detectionType == DetectionTypeEmail {
		var email EmailRequest
		if err := json.Unmarshal([]byte(inputData), &email); err != nil {
			return ""
		}
		return email.Subject
	}

	runes := []rune(inputData)
	if len(runes) > urlDisplayLen {
		runes = runes[:urlDisplayLen]
	}
	return string(runes)
}
