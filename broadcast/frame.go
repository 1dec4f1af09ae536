package broadcast

import (
	"bytes"
	"strconv"
)

// FormatEvent renders one event-stream record:
//
//	id: <id>
//	event: <type>
//	data: <json>
//	<blank line>
//
// data must not contain newlines; encoding/json output never does.
func FormatEvent(id int64, eventType string, data []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(data) + len(eventType) + 32)
	buf.WriteString("id: ")
	buf.WriteString(strconv.FormatInt(id, 10))
	buf.WriteString("\nevent: ")
	buf.WriteString(eventType)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")
	return buf.Bytes()
}
