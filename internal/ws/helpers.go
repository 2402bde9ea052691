package ws

import "github.com/google/uuid"

// newConnID tags a websocket connection for log and event correlation.
func newConnID() string {
	return uuid.NewString()
}
