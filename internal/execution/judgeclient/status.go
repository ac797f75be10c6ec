package judgeclient

// Judge0 status ids.
const (
	StatusInQueue             = 1
	StatusProcessing          = 2
	StatusAccepted            = 3
	StatusWrongAnswer         = 4
	StatusTimeLimitExceeded   = 5
	StatusCompilationError    = 6
	StatusRuntimeErrorSIGSEGV = 7
	StatusRuntimeErrorSIGXFSZ = 8
	StatusRuntimeErrorSIGFPE  = 9
	StatusRuntimeErrorSIGABRT = 10
	StatusRuntimeErrorNZEC    = 11
	StatusRuntimeErrorOther   = 12
	StatusInternalError       = 13
	StatusExecFormatError     = 14
)

var statusDescriptions = map[int]string{
	StatusInQueue:             "In Queue",
	StatusProcessing:          "Processing",
	StatusAccepted:            "Accepted",
	StatusWrongAnswer:         "Wrong Answer",
	StatusTimeLimitExceeded:   "Time Limit Exceeded",
	StatusCompilationError:    "Compilation Error",
	StatusRuntimeErrorSIGSEGV: "Runtime Error (SIGSEGV)",
	StatusRuntimeErrorSIGXFSZ: "Runtime Error (SIGXFSZ)",
	StatusRuntimeErrorSIGFPE:  "Runtime Error (SIGFPE)",
	StatusRuntimeErrorSIGABRT: "Runtime Error (SIGABRT)",
	StatusRuntimeErrorNZEC:    "Runtime Error (NZEC)",
	StatusRuntimeErrorOther:   "Runtime Error (Other)",
	StatusInternalError:       "Internal Error",
	StatusExecFormatError:     "Exec Format Error",
}

// StatusDescription returns the backend's description for id.
func StatusDescription(id int) string {
	if desc, ok := statusDescriptions[id]; ok {
		return desc
	}
	return "Unknown"
}

// IsFinal reports whether the submission has left the queue.
func IsFinal(id int) bool {
	return id >= StatusAccepted
}

func IsAccepted(id int) bool {
	return id == StatusAccepted
}

func IsCompileError(id int) bool {
	return id == StatusCompilationError
}

func IsRuntimeError(id int) bool {
	return id >= StatusRuntimeErrorSIGSEGV && id <= StatusRuntimeErrorOther
}
