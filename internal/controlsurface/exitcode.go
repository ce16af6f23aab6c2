package controlsurface

import (
	"errors"

	"github.com/agentkernel/core/internal/types"
)

// Exit code convention (§6.5).
const (
	ExitSuccess           = 0
	ExitUnrecoverable     = 1
	ExitValidationFailure = 2
	ExitTokenScopeViolation = 3
)

// ExitCodeFor maps a control-surface operation's error to the CLI/RPC
// exit code convention. A nil error is success.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var kerr *types.KindedError
	if errors.As(err, &kerr) {
		switch kerr.Kind {
		case types.KindConfiguration:
			return ExitValidationFailure
		case types.KindAuthorization:
			return ExitTokenScopeViolation
		}
	}
	return ExitUnrecoverable
}
