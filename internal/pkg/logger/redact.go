package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Short local parts (≤2 chars) are fully masked: "ab@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactPhone masks a phone number, keeping the country prefix and the last
// two digits: "5511987654321" → "55*******21".
func RedactPhone(phone string) string {
	if len(phone) < 5 {
		return "***"
	}
	return phone[:2] + strings.Repeat("*", len(phone)-4) + phone[len(phone)-2:]
}

// RedactDocument masks a document identifier, keeping only the last three
// digits: "12345678901" → "********901".
func RedactDocument(doc string) string {
	if len(doc) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(doc)-3) + doc[len(doc)-3:]
}
