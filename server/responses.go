package server

import (
	"fmt"
	"net/http"

	"github.com/dekarrin/grocer"
)

func (em endpointCreator) Logger() grocer.Logger {
	return em.log
}

func (em endpointCreator) LogResponse(req *http.Request, r grocer.Result) {
	em.log.LogResult(req, r)
}

// if status is http.StatusNoContent, respObj will not be read and may be nil.
// Otherwise, respObj MUST NOT be nil. If additional values are provided they
// are given to internalMsg as a format string.
func (em endpointCreator) Response(status int, respObj interface{}, internalMsg string, v ...interface{}) grocer.Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return grocer.Result{
		IsJSON:      true,
		IsErr:       false,
		Status:      status,
		InternalMsg: msg,
		Resp:        respObj,
	}
}

// Err gives a JSON error response whose body is {"detail": userMsg}. If
// additional values are provided they are given to internalMsg as a format
// string.
func (em endpointCreator) Err(status int, userMsg, internalMsg string, v ...interface{}) grocer.Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return grocer.Result{
		IsJSON:      true,
		IsErr:       true,
		Status:      status,
		InternalMsg: msg,
		Resp:        grocer.ErrorResponse{Detail: userMsg},
	}
}

// Redirection returns a Result that sends the client to uri with an HTTP-308,
// so the method and body of the original request are kept.
func (em endpointCreator) Redirection(uri string) grocer.Result {
	msg := fmt.Sprintf("redirect -> %s", uri)
	return grocer.Result{
		Status:      http.StatusPermanentRedirect,
		InternalMsg: msg,
		Redir:       uri,
	}
}

// TextErr is like Err but it avoids JSON encoding of any kind and writes
// the output as plain text. If additional values are provided they are given to
// internalMsg as a format string.
func (em endpointCreator) TextErr(status int, userMsg, internalMsg string, v ...interface{}) grocer.Result {
	msg := fmt.Sprintf(internalMsg, v...)
	return grocer.Result{
		IsJSON:      false,
		IsErr:       true,
		Status:      status,
		InternalMsg: msg,
		Resp:        userMsg,
	}
}

// OK returns a Result containing an HTTP-200 along with a more detailed
// message (if desired; if none is provided it defaults to a generic one) that
// is not displayed to the user.
func (em endpointCreator) OK(respObj interface{}, internalMsg ...interface{}) grocer.Result {
	internalMsgFmt, msgArgs := splitInternalMsg("OK", internalMsg)
	return em.Response(http.StatusOK, respObj, internalMsgFmt, msgArgs...)
}

// BadRequest returns a Result containing an HTTP-400 with userMsg as the
// detail.
func (em endpointCreator) BadRequest(userMsg string, internalMsg ...interface{}) grocer.Result {
	internalMsgFmt, msgArgs := splitInternalMsg("bad request", internalMsg)
	return em.Err(http.StatusBadRequest, userMsg, internalMsgFmt, msgArgs...)
}

// NotFound returns a Result containing an HTTP-404 with userMsg as the detail.
// If userMsg is empty a generic message is used.
func (em endpointCreator) NotFound(userMsg string, internalMsg ...interface{}) grocer.Result {
	internalMsgFmt, msgArgs := splitInternalMsg("not found", internalMsg)
	if userMsg == "" {
		userMsg = "Not Found"
	}
	return em.Err(http.StatusNotFound, userMsg, internalMsgFmt, msgArgs...)
}

// InternalServerError returns a Result containing an HTTP-500 with userMsg as
// the detail. If userMsg is empty a generic message is used. If internalMsg is
// provided the first argument must be a string that is the format string and
// any subsequent args are passed to Sprintf with the first as the format
// string.
func (em endpointCreator) InternalServerError(userMsg string, internalMsg ...interface{}) grocer.Result {
	internalMsgFmt, msgArgs := splitInternalMsg("internal server error", internalMsg)
	if userMsg == "" {
		userMsg = "An internal server error occurred"
	}
	return em.Err(http.StatusInternalServerError, userMsg, internalMsgFmt, msgArgs...)
}

func splitInternalMsg(def string, internalMsg []interface{}) (string, []interface{}) {
	if len(internalMsg) < 1 {
		return def, nil
	}
	return internalMsg[0].(string), internalMsg[1:]
}
