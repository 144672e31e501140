package tui

import (
	"bufio"
	"errors"
	"unicode/utf8"

	"transcript-navigator/internal/service/keyboard"
)

// Action is what a decoded input asks the UI to do.
type Action int

const (
	ActionNone Action = iota
	ActionScroll
	ActionRetry
	ActionQuit
)

// Event is one decoded keypress.
type Event struct {
	Action Action
	Key    keyboard.Key
}

func scroll(k keyboard.Key) Event {
	return Event{Action: ActionScroll, Key: k}
}

// ReadEvent decodes the next keypress from a raw-mode terminal.
func ReadEvent(r *bufio.Reader) (Event, error) {
	if r == nil {
		return Event{}, errors.New("no reader available")
	}
	b, err := r.ReadByte()
	if err != nil {
		return Event{}, err
	}

	switch b {
	case 0x1b:
		return parseEscape(r), nil
	case 'k', 'K':
		return scroll(keyboard.KeyArrowUp), nil
	case 'j', 'J':
		return scroll(keyboard.KeyArrowDown), nil
	case 'b', 'B':
		return scroll(keyboard.KeyPageUp), nil
	case ' ':
		return scroll(keyboard.KeyPageDown), nil
	case 'g':
		return scroll(keyboard.KeyHome), nil
	case 'G':
		return scroll(keyboard.KeyEnd), nil
	case 'r', 'R':
		return Event{Action: ActionRetry}, nil
	case 'q', 'Q', 0x03:
		return Event{Action: ActionQuit}, nil
	}

	if b >= utf8.RuneSelf {
		// Swallow the rest of a multi-byte rune.
		buf := []byte{b}
		for !utf8.FullRune(buf) && len(buf) < utf8.UTFMax {
			next, err := r.ReadByte()
			if err != nil {
				break
			}
			buf = append(buf, next)
		}
	}
	return Event{}, nil
}

func parseEscape(r *bufio.Reader) Event {
	if r.Buffered() == 0 {
		return Event{Action: ActionQuit}
	}
	next, err := r.ReadByte()
	if err != nil {
		return Event{}
	}

	switch next {
	case '[':
		return parseCSI(r)
	case 'O':
		final, err := r.ReadByte()
		if err != nil {
			return Event{}
		}
		switch final {
		case 'A':
			return scroll(keyboard.KeyArrowUp)
		case 'B':
			return scroll(keyboard.KeyArrowDown)
		case 'H':
			return scroll(keyboard.KeyHome)
		case 'F':
			return scroll(keyboard.KeyEnd)
		}
	}
	return Event{}
}

func parseCSI(r *bufio.Reader) Event {
	var seq []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return Event{}
		}
		seq = append(seq, b)
		if (b >= 'A' && b <= 'Z') || b == '~' || len(seq) > 5 {
			break
		}
	}

	switch seq[len(seq)-1] {
	case 'A':
		return scroll(keyboard.KeyArrowUp)
	case 'B':
		return scroll(keyboard.KeyArrowDown)
	case 'H':
		return scroll(keyboard.KeyHome)
	case 'F':
		return scroll(keyboard.KeyEnd)
	case '~':
		switch string(seq[:len(seq)-1]) {
		case "5":
			return scroll(keyboard.KeyPageUp)
		case "6":
			return scroll(keyboard.KeyPageDown)
		case "1", "7":
			return scroll(keyboard.KeyHome)
		case "4", "8":
			return scroll(keyboard.KeyEnd)
		}
	}
	return Event{}
}
