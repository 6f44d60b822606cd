package smoketest

import "time"

// Defaults applied to zero-valued Config fields.
const (
	DefaultRounds  = 5
	DefaultWorkers = 4
	DefaultTimeout = 10 * time.Second
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
	PercentageMultiplier    = 100
	maxReportedFailures     = 10
)

// Paths that no deployment is expected to own.
const (
	pathUnknownAPI    = "/api/__smoke__/missing"
	pathMissingUpload = "/uploads/__smoke__missing.txt"
	pathClientRoute   = "/__smoke__/client/route"
)
