package privacy

import (
	"net/url"
	"strconv"
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 {
			return phone
		}
		if len(phone) <= 5 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	return maskString(phone, 4)
}

// MaskURL reduces a URL to its host so paths and query tokens stay out of logs
// Example: "https://bank.example/login?t=abc" -> "bank.example"
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "http://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return maskString(raw, 4)
	}
	return u.Hostname()
}

// MaskContent replaces message text with its length
func MaskContent(content string) string {
	if content == "" {
		return ""
	}
	return "[" + strconv.Itoa(len(content)) + " chars]"
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, isString := v.(string)
		if !isString {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "phone_number", "sender", "recipient", "from", "to":
			masked[k] = MaskPhoneNumber(s)
		case "url", "uri":
			masked[k] = MaskURL(s)
		case "content", "message", "body":
			masked[k] = MaskContent(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
