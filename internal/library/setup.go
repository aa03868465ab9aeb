package library

import (
	"fmt"
	"strings"
)

// SetupFunctionName returns the setup symbol Pd's loader looks for when it
// loads class name from a binary: "<name>_setup", with a trailing "~"
// spelled "_tilde". Any other character outside [A-Za-z0-9_] is hex-encoded
// and switches the form to "setup_<name>".
func SetupFunctionName(name string) string {
	var b strings.Builder
	hexmunge := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c == '_':
			b.WriteByte(c)
		case c == '~' && i == len(name)-1:
			b.WriteString("_tilde")
		default:
			fmt.Fprintf(&b, "0x%02x", c)
			hexmunge = true
		}
	}
	if hexmunge {
		return "setup_" + b.String()
	}
	return b.String() + "_setup"
}
