package supervisor

//go:generate go tool stringer -type=State -trimprefix=State
//go:generate go tool stringer -type=Reason -trimprefix=Reason

// State is the supervisor's lifecycle position.
type State int32

const (
	StateRunning  State = iota // resources created, not yet draining
	StateDraining              // drain loop active
	StateStopping              // stop flag set, producers being released
	StateTornDown              // resources unlinked
)

// Reason tells why draining ended.
type Reason int

const (
	ReasonNone        Reason = iota // drain failed
	ReasonSolved                    // a record with no edges arrived
	ReasonInterrupted               // context cancelled, e.g. SIGINT/SIGTERM
	ReasonLimit                     // configured record limit reached
)
