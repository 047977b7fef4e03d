package gitexec

import (
	"fmt"
	"strings"
)

// shellMetacharacters are rejected wherever they appear in an argument,
// with no exemption for any flag prefix, per spec.md §4.1's safe-value
// filter. The argv is never passed
// through a shell, but these bytes are rejected anyway: git itself treats
// some of them specially in ref names and pathspecs, and rejecting them
// keeps SafeArg's guarantee independent of how the argument is later used
// (logged, embedded in a ref, etc).
var shellMetacharacters = []byte{';', '|', '&', '$', '`'}

// SafeArg rejects a command-line argument that carries NUL, newline,
// carriage return, control bytes below 0x20 other than tab, any byte
// above 0x7E, or a shell metacharacter.
func SafeArg(s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == 0x00:
			return fmt.Errorf("argument contains a NUL byte")
		case c == '\n' || c == '\r':
			return fmt.Errorf("argument contains a newline")
		case c < 0x20 && c != '\t':
			return fmt.Errorf("argument contains control byte 0x%02x", c)
		case c > 0x7E:
			return fmt.Errorf("argument contains non-ASCII byte 0x%02x", c)
		}
	}
	for _, m := range shellMetacharacters {
		if strings.IndexByte(s, m) >= 0 {
			return fmt.Errorf("argument contains shell metacharacter %q", string(m))
		}
	}
	return nil
}

// knownBrokenFlagPrefixes are flags that let git invoke an arbitrary
// command via its transport/hook machinery; accepting them would defeat
// GitExec's confinement even though the argv itself contains no shell
// metacharacters.
var knownBrokenFlagPrefixes = []string{
	"--upload-pack=",
	"--receive-pack=",
	"--exec=",
	"--upload-archive=",
	"-c core.sshCommand=",
	"-c protocol.",
}

// dangerousAbsolutePrefixes are filesystem roots a "-c key=value" flag must
// not point into; these hold configuration and binaries a git hook could
// hijack.
var dangerousAbsolutePrefixes = []string{"/etc", "/usr", "/var", "/dev", "/proc"}

// RejectBrokenFlag rejects flags known to let git spawn an arbitrary
// command (transport helper overrides, hook overrides) or point a
// "-c key=value" override at a sensitive absolute path.
func RejectBrokenFlag(arg string) error {
	for _, prefix := range knownBrokenFlagPrefixes {
		if strings.HasPrefix(arg, prefix) {
			return fmt.Errorf("flag %q is not permitted", prefix)
		}
	}

	idx := strings.IndexByte(arg, '=')
	if idx < 0 {
		return nil
	}
	rhs := arg[idx+1:]
	for _, root := range dangerousAbsolutePrefixes {
		if strings.HasPrefix(rhs, root) {
			return fmt.Errorf("flag value %q points into a restricted path", rhs)
		}
	}
	return nil
}
