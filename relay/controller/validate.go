package controller

import "github.com/tidwall/gjson"

// hasNonEmptyMessages reports whether body's top-level "messages" array is
// present and non-empty.
func hasNonEmptyMessages(body []byte) bool {
	messages := gjson.GetBytes(body, "messages")
	return messages.IsArray() && len(messages.Array()) > 0
}
