// Package cli holds helpers shared by the command line tools.
package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ParsePayload converts command arguments into a payload. A single
// argument prefixed with "0x" is decoded as hex, otherwise the arguments
// are joined by spaces as text.
func ParsePayload(args []string) ([]byte, error) {
	if len(args) == 1 && strings.HasPrefix(args[0], "0x") {
		data, err := hex.DecodeString(args[0][2:])
		if err != nil {
			return nil, errors.Wrap(err, "invalid hex payload")
		}
		return data, nil
	}
	return []byte(strings.Join(args, " ")), nil
}

// FormatPayload prints a payload as text when printable, otherwise in hex.
func FormatPayload(payload []byte) string {
	for _, b := range payload {
		if b < 0x20 || b > 0x7e {
			return "0x" + hex.EncodeToString(payload)
		}
	}
	return fmt.Sprintf("%q", payload)
}
