package cmd

import "github.com/quocvuong92/ollama-ctl/internal/api"

// Process exit codes
const (
	ExitOK          = 0
	ExitFailure     = 1 // config, resolution, usage and anything unclassified
	ExitUnreachable = 2 // no usable connection, including a stream that went silent
	ExitBackend     = 3 // the backend reported an error
	ExitMalformed   = 4 // the backend's response could not be decoded
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch api.KindOf(err) {
	case api.KindUnreachable, api.KindStreamTimeout:
		return ExitUnreachable
	case api.KindBackend:
		return ExitBackend
	case api.KindMalformed, api.KindStreamCorruption:
		return ExitMalformed
	default:
		return ExitFailure
	}
}
