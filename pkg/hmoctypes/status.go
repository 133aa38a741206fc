package hmoctypes

import "strconv"

// Status is the internal PBI_E* status space returned by the matcher and
// carried in card responses.
type Status byte

const (
	StatusOK              Status = 0
	StatusBuffer          Status = 1
	StatusCancel          Status = 2
	StatusFatal           Status = 3
	StatusBIR             Status = 4
	StatusData            Status = 5
	StatusReader          Status = 6
	StatusSession         Status = 7
	StatusFile            Status = 8
	StatusMemory          Status = 9
	StatusSmartcard       Status = 10
	StatusVersion         Status = 11
	StatusInit            Status = 12
	StatusSupport         Status = 13
	StatusParameter       Status = 14
	StatusBusy            Status = 15
	StatusTimeout         Status = 16
	StatusReadOnly        Status = 17
	StatusAttribute       Status = 18
	StatusPermission      Status = 19
	StatusHandle          Status = 20
	StatusCommunication   Status = 21
	StatusStartup         Status = 22
	StatusQuality         Status = 23
	StatusTooFewMinutiae  Status = 24
	StatusLowRAM          Status = 25
	StatusLowROM          Status = 26
	StatusWritePersistent Status = 27
	StatusPersistentBad   Status = 28
	StatusTransientAlign  Status = 29
	StatusPersistentAlign Status = 32
)

var statusNames = map[Status]string{
	StatusOK:              "PBI_EOK",
	StatusBuffer:          "PBI_EBUFFER",
	StatusCancel:          "PBI_ECANCEL",
	StatusFatal:           "PBI_EFATAL",
	StatusBIR:             "PBI_EBIR",
	StatusData:            "PBI_EDATA",
	StatusReader:          "PBI_EREADER",
	StatusSession:         "PBI_ESESSION",
	StatusFile:            "PBI_EFILE",
	StatusMemory:          "PBI_EMEMORY",
	StatusSmartcard:       "PBI_ESMARTCARD",
	StatusVersion:         "PBI_EVERSION",
	StatusInit:            "PBI_EINIT",
	StatusSupport:         "PBI_ESUPPORT",
	StatusParameter:       "PBI_EPARAMETER",
	StatusBusy:            "PBI_EBUSY",
	StatusTimeout:         "PBI_ETIMEOUT",
	StatusReadOnly:        "PBI_EREADONLY",
	StatusAttribute:       "PBI_EATTRIBUTE",
	StatusPermission:      "PBI_EPERMISSION",
	StatusHandle:          "PBI_EHANDLE",
	StatusCommunication:   "PBI_ECOMMUNICATION",
	StatusStartup:         "PBI_ESTARTUP",
	StatusQuality:         "PBI_EQUALITY",
	StatusTooFewMinutiae:  "PBI_ETOOFEWMINUTIAE",
	StatusLowRAM:          "PBI_ELOWRAM",
	StatusLowROM:          "PBI_ELOWROM",
	StatusWritePersistent: "PBI_EWRITEPERSISTENT",
	StatusPersistentBad:   "PBI_EPERSISTENTINVALID",
	StatusTransientAlign:  "PBI_ETRANSIENTALIGN",
	StatusPersistentAlign: "PBI_EPERSISTENTALIGN",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// ReturnCode is the public pb_rc_t return code space of the host SDK.
type ReturnCode byte

const (
	RCOK                     ReturnCode = 0
	RCNotSupported           ReturnCode = 1
	RCInvalidParameter       ReturnCode = 2
	RCWrongDataFormat        ReturnCode = 3
	RCWrongBufferSize        ReturnCode = 4
	RCNotInitialized         ReturnCode = 5
	RCNotFound               ReturnCode = 6
	RCCancelled              ReturnCode = 7
	RCTimedOut               ReturnCode = 8
	RCMemoryAllocationFailed ReturnCode = 9
	RCFileOpenFailed         ReturnCode = 10
	RCFileReadFailed         ReturnCode = 11
	RCFileWriteFailed        ReturnCode = 12
	RCReaderNotAvailable     ReturnCode = 13
	RCReaderBusy             ReturnCode = 14
	RCEnrollmentVerifyFailed ReturnCode = 15
	RCFingerBlocked          ReturnCode = 16
	RCFatal                  ReturnCode = 17
	RCSensorNotSupported     ReturnCode = 18
	RCCapacity               ReturnCode = 19
	RCNoAlgorithm            ReturnCode = 20
)

var returnCodeNames = map[ReturnCode]string{
	RCOK:                     "PB_RC_OK",
	RCNotSupported:           "PB_RC_NOT_SUPPORTED",
	RCInvalidParameter:       "PB_RC_INVALID_PARAMETER",
	RCWrongDataFormat:        "PB_RC_WRONG_DATA_FORMAT",
	RCWrongBufferSize:        "PB_RC_WRONG_BUFFER_SIZE",
	RCNotInitialized:         "PB_RC_NOT_INITIALIZED",
	RCNotFound:               "PB_RC_NOT_FOUND",
	RCCancelled:              "PB_RC_CANCELLED",
	RCTimedOut:               "PB_RC_TIMED_OUT",
	RCMemoryAllocationFailed: "PB_RC_MEMORY_ALLOCATION_FAILED",
	RCFileOpenFailed:         "PB_RC_FILE_OPEN_FAILED",
	RCFileReadFailed:         "PB_RC_FILE_READ_FAILED",
	RCFileWriteFailed:        "PB_RC_FILE_WRITE_FAILED",
	RCReaderNotAvailable:     "PB_RC_READER_NOT_AVAILABLE",
	RCReaderBusy:             "PB_RC_READER_BUSY",
	RCEnrollmentVerifyFailed: "PB_RC_ENROLLMENT_VERIFICATION_FAILED",
	RCFingerBlocked:          "PB_RC_FINGER_BLOCKED",
	RCFatal:                  "PB_RC_FATAL",
	RCSensorNotSupported:     "PB_RC_SENSOR_NOT_SUPPORTED",
	RCCapacity:               "PB_RC_CAPACITY",
	RCNoAlgorithm:            "PB_RC_NO_ALGORITHM",
}

func (rc ReturnCode) String() string {
	if n, ok := returnCodeNames[rc]; ok {
		return n
	}
	return "ReturnCode(" + strconv.Itoa(int(rc)) + ")"
}

// ConvertStatus maps an internal status to the public return code space.
// Statuses without a dedicated return code become RCFatal.
func ConvertStatus(s Status) ReturnCode {
	switch s {
	case StatusOK:
		return RCOK
	case StatusBuffer:
		return RCWrongBufferSize
	case StatusCancel:
		return RCCancelled
	case StatusBIR, StatusData, StatusPersistentBad:
		return RCWrongDataFormat
	case StatusReader, StatusSmartcard, StatusCommunication:
		return RCReaderNotAvailable
	case StatusSession, StatusInit:
		return RCNotInitialized
	case StatusFile:
		return RCFileOpenFailed
	case StatusMemory, StatusLowRAM, StatusLowROM:
		return RCMemoryAllocationFailed
	case StatusWritePersistent:
		return RCFileWriteFailed
	case StatusVersion, StatusSupport:
		return RCNotSupported
	case StatusParameter, StatusTransientAlign, StatusPersistentAlign:
		return RCInvalidParameter
	case StatusBusy:
		return RCReaderBusy
	case StatusTimeout:
		return RCTimedOut
	case StatusQuality, StatusTooFewMinutiae:
		return RCEnrollmentVerifyFailed
	default:
		return RCFatal
	}
}
