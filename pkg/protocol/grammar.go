package protocol

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Tokenize splits the header of a message into at most MaxTokens tokens.
//
// Only the text before the first newline is considered; everything after it
// is payload. Tokens are separated by spaces and empty tokens are skipped.
// When the line holds more than MaxTokens tokens, the first MaxTokens are
// returned together with ErrTooManyTokens.
func Tokenize(line string) ([]string, error) {
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	tokens := make([]string, 0, MaxTokens)
	for _, tok := range strings.Split(line, " ") {
		if tok == "" {
			continue
		}
		if len(tokens) == MaxTokens {
			return tokens, ErrTooManyTokens
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// ParseCommand decodes one complete message: a header line, optionally
// followed by the payload its header declares.
//
// Grammar failures are returned as *GrammarError. A message whose payload is
// shorter than declared returns an error wrapping ErrShortPayload.
func ParseCommand(msg []byte) (*Command, error) {
	header, payload := msg, []byte(nil)
	if i := bytes.IndexByte(msg, '\n'); i >= 0 {
		header, payload = msg[:i], msg[i+1:]
	}

	tokens, tokErr := Tokenize(string(header))
	if len(tokens) == 0 {
		return nil, &GrammarError{Err: ErrNoTokens, Message: "No tokens in message."}
	}

	name := tokens[0]
	id, ok := LookupCommand(name)
	if !ok {
		return nil, &GrammarError{
			Err:     ErrUnknownCommand,
			Message: fmt.Sprintf("Unknown command %s.", name),
		}
	}

	form := id.Form()
	want := form.Tokens()
	if tokErr != nil || len(tokens) != want {
		err, adj := ErrTooFewTokens, "few"
		if tokErr != nil || len(tokens) > want {
			err, adj = ErrTooManyTokens, "many"
		}
		return nil, &GrammarError{
			Err: err,
			Message: fmt.Sprintf("Too %s arguments for command %s. Expected form is %s",
				adj, name, form.Template(name)),
		}
	}

	cmd := &Command{ID: id}
	next := 1

	if form.HasNumber() {
		n, err := parseInt(tokens[next], name)
		if err != nil {
			return nil, err
		}
		cmd.Number = n
		next++
	}

	if form.HasLength() {
		n, err := parseInt(tokens[next], name)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, &GrammarError{
				Err:     ErrNegativeLength,
				Message: fmt.Sprintf("Parse error. Length argument %d to command %s is negative.", n, name),
			}
		}
		if int64(len(payload)) < n {
			return nil, fmt.Errorf("%w: %s declares %d bytes, got %d", ErrShortPayload, name, n, len(payload))
		}
		cmd.Length = int(n)
		cmd.Data = make([]byte, n)
		copy(cmd.Data, payload)
	}

	return cmd, nil
}

func parseInt(tok, name string) (int64, error) {
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, &GrammarError{
			Err:     ErrNotAnInteger,
			Message: fmt.Sprintf("Parse error. Argument %s to command %s is not an integer.", tok, name),
		}
	}
	return n, nil
}

// declaredLength returns the payload length a header line announces, or 0
// when the line is not a well-formed length-carrying header. The grammar
// reports malformed lines once the message is handed to ParseCommand.
func declaredLength(header []byte) int64 {
	tokens, err := Tokenize(string(header))
	if err != nil || len(tokens) == 0 {
		return 0
	}
	id, ok := LookupCommand(tokens[0])
	if !ok {
		return 0
	}
	form := id.Form()
	if !form.HasLength() || len(tokens) != form.Tokens() {
		return 0
	}
	n, err := strconv.ParseInt(tokens[len(tokens)-1], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
