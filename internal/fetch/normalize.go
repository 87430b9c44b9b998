package fetch

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// FallbackErrorMessage is shown when a failed call carries no usable
// message of its own.
const FallbackErrorMessage = "Something went wrong. Please try again."

// Normalize unwraps the ledger API's response envelope. Endpoints
// answer either a bare payload or `{"success":…,"data":…}`; both shapes
// must be tolerated everywhere, so the unwrap lives here and nowhere
// else.
func Normalize(body []byte) json.RawMessage {
	if data := gjson.GetBytes(body, "data"); data.Exists() && data.Type != gjson.Null {
		return json.RawMessage(data.Raw)
	}
	return json.RawMessage(body)
}

// ErrorMessage extracts the server's human-readable `message` from an
// error payload, falling back to a generic line.
func ErrorMessage(body []byte) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	return FallbackErrorMessage
}

// As decodes a cell snapshot's payload into T. The second return is
// false when there is no data or it does not decode.
func As[T any](snap Snapshot) (T, bool) {
	var out T
	if len(snap.Data) == 0 {
		return out, false
	}
	if err := json.Unmarshal(snap.Data, &out); err != nil {
		return out, false
	}
	return out, true
}
