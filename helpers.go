package grocer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

var (
	paramTypePats = map[string]string{
		"uuid":     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
		"email":    `\S+@\S+`,
		"num":      `\d+`,
		"int":      `-?\d+`,
		"alpha":    `[A-Za-z]+`,
		"alphanum": `[A-Za-z0-9]+`,
	}

	pathParamRegex = regexp.MustCompile(`\{([^:}]+):[^}]*\}`)
)

// PathParam translates strings of the form "name:type" to a URI path parameter
// string of the form "{name:regex}" compatible with the routers used by
// grocer. Only request URIs whose path parameters match their respective
// regexes (if any) will match that route.
//
// Note that this only does basic matching for path routing. API endpoint logic
// will still need to decode the received string.
//
// Currently, PathParam supports the following parameter type names:
//
//   - "uuid" - UUID strings.
//   - "email" - Two strings separated by an @ sign.
//   - "num" - One or more digits 0-9.
//   - "int" - One or more digits 0-9 with an optional leading minus sign.
//   - "alpha" - One or more Latin letters A-Z or a-z.
//   - "alphanum" - One or more Latin letters A-Z, a-z, or digits 0-9.
//
// If a different regex is needed for a path parameter, give it manually in the
// path using "{name:regex}" syntax instead of using PathParam; this is simply to use
// the above listed shortcuts.
//
// If only name is given in the string (with no colon), then the string
// "{" + name + "}" is returned.
func PathParam(nameType string) string {
	var name string
	var pat string

	parts := strings.SplitN(nameType, ":", 2)
	name = parts[0]
	if len(parts) == 2 {
		// we have a type, if it's a name in the paramTypePats map use that else
		// treat it as a normal pattern
		pat = parts[1]

		if translatedPat, ok := paramTypePats[parts[1]]; ok {
			pat = translatedPat
		}
	}

	if pat == "" {
		return "{" + name + "}"
	}
	return "{" + name + ":" + pat + "}"
}

// UnPathParam replaces every "{name:regex}" in s with "{name}". It is used to
// make route listings readable.
func UnPathParam(s string) string {
	return pathParamRegex.ReplaceAllString(s, "{$1}")
}

// ParseJSONRequest decodes the JSON body of req into v, which must be a
// pointer. A request with no Content-Type is accepted; any other content type
// than application/json is rejected. The returned error will return true for
// errors.Is(err, ErrBodyUnmarshal) if it is a problem decoding the JSON itself.
func ParseJSONRequest(req *http.Request, v interface{}) error {
	contentType := req.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || strings.ToLower(mediaType) != "application/json" {
			return NewError("request content-type is not application/json", ErrBodyUnmarshal)
		}
	}

	bodyData, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	defer func() {
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewBuffer(bodyData))
	}()

	err = json.Unmarshal(bodyData, v)
	if err != nil {
		return NewError("malformed JSON in request", err, ErrBodyUnmarshal)
	}

	return nil
}

// GetIDParam gets the integer ID of the main entity being referenced in the
// URI. The error will return true for errors.Is(err, ErrBadArgument) if the
// parameter is present but not an integer in range.
func GetIDParam(r *http.Request) (int64, error) {
	return GetURLParam(r, "id", func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	})
}

func GetURLParam[E any](r *http.Request, key string, parse func(string) (E, error)) (val E, err error) {
	valStr := chi.URLParam(r, key)
	if valStr == "" {
		// either it does not exist or it is nil; treat both as the same and
		// return an error
		return val, fmt.Errorf("parameter does not exist")
	}

	val, err = parse(valStr)
	if err != nil {
		return val, NewError(fmt.Sprintf("parameter %q is not valid", key), ErrBadArgument)
	}
	return val, nil
}
