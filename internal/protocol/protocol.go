package protocol

import (
	"context"
	"strconv"
	"strings"
)

// Command verbs accepted over the socket.
const (
	CmdGet  = "get"
	CmdUp   = "up"
	CmdDown = "down"
	CmdSet  = "set"
	CmdStop = "stop"
)

// Replies with fixed wording.
const (
	ReplyStopping       = "OK stopping"
	ReplyUnknownCommand = "ERROR unknown command"
)

// Defaults supplies the fallback amounts for commands with missing or
// unparseable numeric arguments.
type Defaults struct {
	Step int
	Set  int
}

// Request is one parsed client command.
type Request struct {
	Op     string
	Amount int
}

// Parse interprets a single command line. The second return is false for
// unknown commands. Missing or malformed numbers fall back to the defaults.
func Parse(line string, defs Defaults) (Request, bool) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Request{}, false
	}

	op := fields[0]
	switch op {
	case CmdGet, CmdStop:
		return Request{Op: op}, true
	case CmdUp, CmdDown:
		return Request{Op: op, Amount: parseAmount(fields[1:], defs.Step)}, true
	case CmdSet:
		return Request{Op: op, Amount: parseAmount(fields[1:], defs.Set)}, true
	default:
		return Request{}, false
	}
}

func parseAmount(args []string, fallback int) int {
	if len(args) == 0 {
		return fallback
	}
	value, err := strconv.Atoi(args[0])
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// Controller is the slice of the brightness manager the protocol drives.
type Controller interface {
	Get(ctx context.Context) (int, error)
	Set(ctx context.Context, value int) (int, error)
	Adjust(ctx context.Context, step int) (int, error)
}

// Handler turns command lines into replies against a controller.
type Handler struct {
	controller Controller
	defaults   Defaults
}

// NewHandler builds a protocol handler. Non-positive defaults are replaced
// with the documented protocol fallbacks (step 5, set 50).
func NewHandler(controller Controller, defs Defaults) *Handler {
	if defs.Step <= 0 {
		defs.Step = 5
	}
	if defs.Set <= 0 {
		defs.Set = 50
	}
	return &Handler{controller: controller, defaults: defs}
}

// Execute runs one command line and returns the single-line reply plus
// whether the daemon should shut down.
func (h *Handler) Execute(ctx context.Context, line string) (reply string, stop bool) {
	req, ok := Parse(line, h.defaults)
	if !ok {
		return ReplyUnknownCommand, false
	}

	switch req.Op {
	case CmdGet:
		value, err := h.controller.Get(ctx)
		return FormatResult(value, err), false
	case CmdUp:
		value, err := h.controller.Adjust(ctx, req.Amount)
		return FormatResult(value, err), false
	case CmdDown:
		value, err := h.controller.Adjust(ctx, -req.Amount)
		return FormatResult(value, err), false
	case CmdSet:
		value, err := h.controller.Set(ctx, req.Amount)
		return FormatResult(value, err), false
	case CmdStop:
		return ReplyStopping, true
	default:
		return ReplyUnknownCommand, false
	}
}
