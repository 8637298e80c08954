package supervisor

import "errors"

// ErrNoAgentsConfigured is returned by ParallelSupervisor operations when no
// agent has been registered via AddAgent.
var ErrNoAgentsConfigured = errors.New("no agents configured in parallel supervisor")
