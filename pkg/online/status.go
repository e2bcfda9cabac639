package online

type (
	// ConnectionStatus summarises the health of the login to the backend.
	ConnectionStatus uint8

	// JoinResult is the outcome of a join.
	JoinResult uint8
)

const (
	StatusNotConnected ConnectionStatus = iota
	StatusConnected
	StatusNoNetworkConnection
	StatusInvalidUser
	StatusDuplicateLoginDetected
	StatusUpdateRequired
	StatusServersTooBusy
	StatusServiceUnavailable
)

const (
	JoinSuccess JoinResult = iota
	JoinSessionIsFull
	JoinSessionDoesNotExist
	JoinCouldNotRetrieveAddress
	JoinAlreadyInSession
	JoinUnknownError
)
