package modlog

const emptyString = ""

const (
	errMsgNilService    = "Logging service is nil."
	errMsgConfigInvalid = "Logging configuration is invalid."
	errMsgPolicyInvalid = "Rotation policy is invalid."
	errMsgNoSink        = "No output sink configured."
)

const (
	// rotatedSeparator sits between the base name and the rotation index
	// in rotated file names, e.g. server_r00004.log.
	rotatedSeparator = "_r"

	defaultSuffix        = ".log"
	defaultWatchDebounce = 100 // milliseconds
)
