package dof

import "strings"

// LineClass is the outcome of classifying one raw DOF line.
type LineClass int

const (
	Data LineClass = iota
	Header
	Separator
	TooShort
)

// HeaderLines is the number of leading lines that are always header text.
const HeaderLines = 4

// MinDataLength is the shortest line that can carry an obstacle.
const MinDataLength = 80

func (c LineClass) String() string {
	switch c {
	case Data:
		return "data"
	case Header:
		return "header"
	case Separator:
		return "separator"
	case TooShort:
		return "too_short"
	}
	return "unknown"
}

// Classify decides what a raw line is, given its 0-based index in the file.
func Classify(line string, index int) LineClass {
	if index < HeaderLines {
		return Header
	}

	trimmed := strings.TrimSpace(line)
	if trimmed != "" && strings.Trim(trimmed, "-") == "" {
		return Separator
	}

	if trimmed == "" || len(line) < MinDataLength {
		return TooShort
	}

	return Data
}
