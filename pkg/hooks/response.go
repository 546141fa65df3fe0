// Package hooks provides the host-facing response contract and the client
// side of the hooktraild worker API.
package hooks

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Exit codes of the hook binary.
const (
	ExitSuccess  = 0 // processed, or gracefully skipped
	ExitFailure  = 1 // fatal error
	ExitRejected = 2 // validation or security rejection
)

// Response is the machine-readable document the host reads from stdout.
// Nothing else is ever written to stdout.
type Response struct {
	Continue bool `json:"continue"`
}

// WriteResponse writes the host response document to stdout.
func WriteResponse(ok bool) {
	data, _ := json.Marshal(Response{Continue: ok})
	fmt.Fprintln(os.Stdout, string(data))
}
