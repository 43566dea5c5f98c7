package vtable

import (
	"strings"

	"github.com/google/uuid"
)

// parseAnnotationGUID pulls the quoted GUID out of an interface
// annotation such as MIDL_INTERFACE("aec22fb8-76f3-4639-9be0-28eb43a67a2e")
// or DECLSPEC_UUID("..."). Anything uuid.Parse rejects is malformed.
func parseAnnotationGUID(text string) (uuid.UUID, bool) {
	open := strings.IndexByte(text, '"')
	if open < 0 {
		return uuid.UUID{}, false
	}
	rest := text[open+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return uuid.UUID{}, false
	}
	u, err := uuid.Parse(rest[:end])
	if err != nil {
		return uuid.UUID{}, false
	}
	return u, true
}
