package gitexec

import (
	"net/url"
	"strings"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// allowedURLSchemes are the only schemes SanitizeURL accepts, per
// spec.md §4.1.
var allowedURLSchemes = map[string]bool{
	"https": true,
	"http":  true,
	"git":   true,
	"ssh":   true,
}

// SanitizeURL strips userinfo (username/password) from a clone or fetch
// URL before it is logged or recorded, rejects schemes outside
// {https, http, git, ssh}, and rejects URLs embedding shell
// metacharacters or percent-encoded NUL/newline.
//
// Grounded on the teacher's git/internal/auth/https.go and ssh.go URL
// parsing idiom, generalized from auth-method selection to credential
// stripping.
func SanitizeURL(raw string) (string, error) {
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "%00") || strings.Contains(lower, "%0a") || strings.Contains(lower, "%0d") {
		return "", ferrors.New(ferrors.KindCommandInjection, "SanitizeURL", "URL contains a percent-encoded control byte")
	}
	for _, m := range shellMetacharacters {
		if strings.IndexByte(raw, m) >= 0 {
			return "", ferrors.New(ferrors.KindCommandInjection, "SanitizeURL", "URL contains a shell metacharacter")
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindInvalidArgument, "SanitizeURL")
	}
	if !allowedURLSchemes[parsed.Scheme] {
		return "", ferrors.New(ferrors.KindInvalidArgument, "SanitizeURL", "scheme "+parsed.Scheme+" is not permitted")
	}

	parsed.User = nil
	return parsed.String(), nil
}
