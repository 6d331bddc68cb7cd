package pipe

import "strings"

// Mode is the intent a handle is opened with.
type Mode uint8

// Open modes.
const (
	ModeRead Mode = 1 << iota
	ModeWrite

	ModeReadWrite = ModeRead | ModeWrite
)

// CanRead reports whether the mode includes read intent.
func (m Mode) CanRead() bool { return m&ModeRead != 0 }

// CanWrite reports whether the mode includes write intent.
func (m Mode) CanWrite() bool { return m&ModeWrite != 0 }

func (m Mode) valid() bool {
	return m&ModeReadWrite != 0 && m&^ModeReadWrite == 0
}

// String returns "read", "write", "readwrite" or "invalid".
func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	case ModeReadWrite:
		return "readwrite"
	default:
		return "invalid"
	}
}

// ParseMode accepts r, w, rw and the String forms.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "read":
		return ModeRead, true
	case "w", "write":
		return ModeWrite, true
	case "rw", "wr", "readwrite":
		return ModeReadWrite, true
	default:
		return 0, false
	}
}
