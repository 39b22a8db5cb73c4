package resolve

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ben-ranford/bundlegraph/internal/noderesolve"
)

var ErrUnresolved = errors.New("unresolved module")

// UnresolvedError reports a reference that neither the registry, the alias
// map nor generic resolution could locate. It aborts the session. Hint, when
// set, is appended to the message as a remedy.
type UnresolvedError struct {
	ModuleName    string
	RequiringFile string
	Options       noderesolve.Options
	Hint          string
	Err           error
}

func (e *UnresolvedError) Error() string {
	options, err := json.MarshalIndent(e.Options, "", "   ")
	if err != nil {
		options = []byte("{}")
	}
	message := fmt.Sprintf("unable to resolve module [%s] from [%s]\n%s", e.ModuleName, e.RequiringFile, options)
	if e.Hint != "" {
		message += "\n" + e.Hint
	}
	return message
}

func (e *UnresolvedError) Is(target error) bool {
	return target == ErrUnresolved
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}
