package env

import (
	"net/url"
	"strings"
)

// sensitiveMarkers are substrings of variable names whose
// values must not appear in logs.
var sensitiveMarkers = []string{
	"TOKEN", "SECRET", "PASSWORD", "PASSWD", "API_KEY", "APIKEY",
	"CREDENTIAL", "PRIVATE",
}

// IsSensitive reports whether key names a secret.
func IsSensitive(key string) bool {
	upper := strings.ToUpper(key)
	for _, m := range sensitiveMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// Redact masks a value, showing only the first 4 and last 4 characters.
func Redact(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// RedactURL masks credentials in a URL string.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.User != nil {
		password, hasPassword := u.User.Password()
		if hasPassword {
			u.User = url.UserPassword(u.User.Username(), Redact(password))
		}
	}
	return u.String()
}

// RedactEnviron masks the values of sensitive KEY=value pairs.
func RedactEnviron(environ []string) []string {
	out := make([]string, 0, len(environ))
	for _, kv := range environ {
		key, value, found := strings.Cut(kv, "=")
		switch {
		case !found:
			out = append(out, kv)
		case IsSensitive(key):
			out = append(out, key+"="+Redact(value))
		case strings.Contains(value, "://"):
			out = append(out, key+"="+RedactURL(value))
		default:
			out = append(out, kv)
		}
	}
	return out
}
