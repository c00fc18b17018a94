package protocol

import (
	"math"
	"strconv"
	"strings"

	"ledger-socket/src/helpers"
	"ledger-socket/src/models"
)

// Separator splits the verb and its arguments on one command line.
const Separator = ":"

// -----------------------------------------------------------------------------

// arity lists the number of arguments each verb accepts.
var arity = map[string]int{
	models.OpGet: 1,
	models.OpPut: 4,
	models.OpAdd: 2,
	models.OpSub: 2,
}

// -----------------------------------------------------------------------------
// Command is one parsed request line.
// -----------------------------------------------------------------------------

type Command struct {
	Verb string
	Args []string
}

// ParseCommand trims the raw line, splits it on ':' and upper-cases the verb.
// It never fails: validity is a separate question answered by Valid.
func ParseCommand(raw string) Command {
	parts := strings.Split(strings.TrimSpace(raw), Separator)
	return Command{
		Verb: strings.ToUpper(parts[0]),
		Args: parts[1:],
	}
}

// Valid reports whether the verb is known and has the right argument count.
func (c Command) Valid() bool {
	n, ok := arity[c.Verb]
	return ok && len(c.Args) == n
}

// String renders the command back into its wire form without delimiter.
func (c Command) String() string {
	return Format(c.Verb, c.Args...)
}

// -----------------------------------------------------------------------------

// Format builds a command line such as "ADD:123:50".
func Format(verb string, args ...string) string {
	return strings.Join(append([]string{verb}, args...), Separator)
}

// FormatAmount renders a float with the shortest representation that parses
// back to the same value.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseAmount parses a balance or amount literal. Surrounding whitespace is
// ignored; NaN and infinities are rejected.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, helpers.NewValidationError("parse "+strconv.Quote(s), helpers.ErrInvalidAmount)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, helpers.NewValidationError("non-finite "+strconv.Quote(s), helpers.ErrInvalidAmount)
	}
	return v, nil
}

// ValidField reports whether s can travel as a single command argument.
func ValidField(s string) bool {
	return !strings.ContainsAny(s, Separator+"\r\n")
}
