package repository

import (
	"fmt"
	"strconv"
	"strings"
)

// ID is a stream entry id of the form "<ms>-<seq>".
type ID struct {
	Ms  uint64
	Seq uint64
}

func (id ID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Less reports whether id sorts before other.
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// Next returns the smallest id after id.
func (id ID) Next() ID {
	return ID{Ms: id.Ms, Seq: id.Seq + 1}
}

// IsEarliest reports whether cursor denotes the start of the log.
func IsEarliest(cursor string) bool {
	switch strings.TrimSpace(cursor) {
	case "", "-", Earliest, "earliest", "0":
		return true
	}
	return false
}

// ParseID parses "<ms>-<seq>" or "<ms>". Earliest spellings parse to the zero id.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if IsEarliest(s) {
		return ID{}, nil
	}
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	var seq uint64
	if hasSeq {
		if seq, err = strconv.ParseUint(seqPart, 10, 64); err != nil {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
		}
	}
	return ID{Ms: ms, Seq: seq}, nil
}

// CompareIDs orders two id strings; unparsable ids sort first.
func CompareIDs(a, b string) int {
	ia, errA := ParseID(a)
	ib, errB := ParseID(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	case ia.Less(ib):
		return -1
	case ib.Less(ia):
		return 1
	}
	return 0
}
