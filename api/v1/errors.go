package distlockv1

// google.rpc.ErrorInfo attached to ABORTED releases
const (
	ErrorDomain      = "distlock"
	ReasonStaleClock = "STALE_CLOCK"

	MetadataKey            = "key"
	MetadataExpectedClock  = "expected_clock"
	MetadataPresentedClock = "presented_clock"
)

// RequestIDHeader carries the id the server assigned to a call.
const RequestIDHeader = "x-request-id"
