package interfaces

import "context"

// Judge is the opinion provider. It receives a fully rendered prompt and
// returns the raw model text; parsing and validation happen downstream.
type Judge interface {
	Judge(ctx context.Context, prompt string) (string, error)
	Name() string
}
