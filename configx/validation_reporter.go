package configx

import (
	"fmt"
	"io"
	"strings"

	"github.com/ory/jsonschema/v3"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

func printHumanReadableValidationErrors(w io.Writer, raw []byte, err error) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		_, _ = fmt.Fprintf(w, "The configuration is invalid: %+v\n", err)
		return
	}

	_, _ = fmt.Fprintln(w, "The configuration contains values or keys which are invalid:")
	printValidationError(w, raw, ve)
	_, _ = fmt.Fprintln(w)
}

func printValidationError(w io.Writer, raw []byte, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		path := pointerToPath(ve.InstancePtr)
		value := gjson.GetBytes(raw, path).Raw
		if path == "" {
			value = "<root>"
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", path, value)
		_, _ = fmt.Fprintf(w, "%s^-- %s\n", strings.Repeat(" ", len(path)+2), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		printValidationError(w, raw, cause)
	}
}

// pointerToPath turns "#/storage/provider" into "storage.provider".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	return strings.ReplaceAll(ptr, "/", ".")
}
