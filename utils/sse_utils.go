package utils

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteSSEJSON marshals v and writes it as one SSE data frame
func WriteSSEJSON(w io.Writer, v interface{}) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(w, "data: {\"message\": \"Error creating message\"}\n\n")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
