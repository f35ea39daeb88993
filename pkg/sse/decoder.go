package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const maxLineBytes = 1 << 20

// Decoder reads events from an event-stream body.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next event. Comment lines and unknown fields are
// skipped. At end of input a pending event is returned before io.EOF.
func (d *Decoder) Decode() (Event, error) {
	var (
		ev      Event
		data    []string
		pending bool
	)
	for {
		line, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) && pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			return Event{}, err
		}

		if line == "" {
			if !pending {
				continue
			}
			ev.Data = strings.Join(data, "\n")
			return ev, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "data":
			data = append(data, value)
			pending = true
		case "event":
			ev.Event = value
			pending = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				ev.ID = value
				pending = true
			}
		case "retry":
			if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
				ev.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}
}

func (d *Decoder) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, isPrefix, err := d.r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", err
		}
		sb.Write(chunk)
		if sb.Len() > maxLineBytes {
			return "", fmt.Errorf("%w: %d bytes", ErrLineTooLong, sb.Len())
		}
		if !isPrefix {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
	}
}
