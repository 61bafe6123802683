package wsapi

import "encoding/json"

// unmarshalPayload decodes a command's payload into dst, wrapping a
// parse failure in the Generic error category so every handler reports
// malformed input the same way.
func unmarshalPayload(frame ClientFrame, dst interface{}) error {
	if len(frame.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(frame.Payload, dst); err != nil {
		return badPayload(err)
	}
	return nil
}
