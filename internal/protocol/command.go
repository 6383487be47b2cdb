package protocol

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Code is the single letter that follows '@' in a client command.
type Code byte

const (
	CodeName      Code = 'P'
	CodeStart     Code = 'N'
	CodeReady     Code = 'S'
	CodeReadyAlt  Code = 's'
	CodeBid       Code = 'B'
	CodeCard      Code = 'C'
	CodeAck       Code = 'A'
	CodeRematch   Code = '1'
	CodeRefuse    Code = '0'
	CodeTerminate Code = 'T'
	CodeKeepAlive Code = 'K'
)

var codeNames = map[Code]string{
	CodeName:      "name",
	CodeStart:     "start",
	CodeReady:     "ready",
	CodeReadyAlt:  "ready",
	CodeBid:       "bid",
	CodeCard:      "card",
	CodeAck:       "ack",
	CodeRematch:   "rematch",
	CodeRefuse:    "refuse",
	CodeTerminate: "terminate",
	CodeKeepAlive: "keepalive",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%q)", byte(c))
}

var (
	ErrUnknownCode      = errors.New("UNKNOWN_CODE: unrecognised command code")
	ErrMalformedCommand = errors.New("MALFORMED_COMMAND: command argument is invalid")
)

// Command is a decoded client intent.
type Command struct {
	Code Code
	// Name is set for CodeName.
	Name string
	// Number holds the start count, bid or card pack index.
	Number int
	// Seat is the sender's seat as claimed by bid and card commands.
	Seat int
}

func NameCommand(name string) Command      { return Command{Code: CodeName, Name: name} }
func StartCommand(n int) Command           { return Command{Code: CodeStart, Number: n} }
func ReadyCommand() Command                { return Command{Code: CodeReady} }
func BidCommand(bid, seat int) Command     { return Command{Code: CodeBid, Number: bid, Seat: seat} }
func CardCommand(cardID, seat int) Command { return Command{Code: CodeCard, Number: cardID, Seat: seat} }
func AckCommand() Command                  { return Command{Code: CodeAck} }
func TerminateCommand() Command            { return Command{Code: CodeTerminate} }
func KeepAliveCommand() Command            { return Command{Code: CodeKeepAlive} }

func RematchCommand(accept bool) Command {
	if accept {
		return Command{Code: CodeRematch}
	}
	return Command{Code: CodeRefuse}
}

// Encode renders the command in its wire form, e.g. "@B031".
func (c Command) Encode() string {
	switch c.Code {
	case CodeName:
		return "@P" + c.Name
	case CodeStart:
		return "@N" + strconv.Itoa(c.Number)
	case CodeBid, CodeCard:
		return fmt.Sprintf("@%c%02d%d", c.Code, c.Number, c.Seat)
	default:
		return "@" + string(c.Code)
	}
}

// ParseCommand decodes a client payload. Unknown codes are rejected rather
// than being guessed at.
func ParseCommand(payload string) (Command, error) {
	if len(payload) < 2 || payload[0] != '@' {
		return Command{}, errors.Wrapf(ErrMalformedCommand, "payload %q", payload)
	}
	code, arg := Code(payload[1]), payload[2:]

	switch code {
	case CodeName:
		if arg == "" {
			return Command{}, errors.Wrap(ErrMalformedCommand, "empty name")
		}
		return NameCommand(arg), nil

	case CodeStart:
		n, err := strconv.Atoi(arg)
		if err != nil {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "start number %q", arg)
		}
		return StartCommand(n), nil

	case CodeBid, CodeCard:
		if len(arg) != 3 {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "%s argument %q", code, arg)
		}
		n, err := strconv.Atoi(arg[:2])
		if err != nil {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "%s value %q", code, arg[:2])
		}
		seat, err := strconv.Atoi(arg[2:])
		if err != nil {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "%s seat %q", code, arg[2:])
		}
		return Command{Code: code, Number: n, Seat: seat}, nil

	case CodeReady, CodeReadyAlt, CodeAck, CodeRematch, CodeRefuse, CodeTerminate, CodeKeepAlive:
		if arg != "" {
			return Command{}, errors.Wrapf(ErrMalformedCommand, "%s takes no argument", code)
		}
		return Command{Code: code}, nil
	}

	return Command{}, errors.Wrapf(ErrUnknownCode, "code %q", payload[1])
}

// Effect tells the transport what to do after a command was handled.
type Effect int

const (
	// EffectNone means the command was dropped or needs no reply.
	EffectNone Effect = iota
	// EffectQueued means the command was accepted into the game loop.
	EffectQueued
	// EffectClose means the connection must be shut down.
	EffectClose
)

func (e Effect) String() string {
	switch e {
	case EffectQueued:
		return "queued"
	case EffectClose:
		return "close"
	default:
		return "none"
	}
}
