package handler

const (
	msgCreated          = "Schedule created"
	msgUpdated          = "Schedule updated"
	msgToggled          = "Status changed"
	msgDeleted          = "Schedule deleted"
	msgActivated        = "Activation recorded"
	errInvalidData      = "Invalid data"
	errConflicts        = "Conflicts detected"
	errScheduleNotFound = "Schedule not found: "
	errSaveFailed       = "Save failed"
	errInternalServer   = "Internal server error"
	errNotSupported     = "Method or route not supported"
)
