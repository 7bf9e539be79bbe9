package extsrv

import (
	"fmt"
	"net/http"

	"github.com/programme-lv/extserver/srvcerr"
)

const ErrCodeMissingConfig = "missing_config"

func newErrMissingConfig(field string) *srvcerr.Error {
	return srvcerr.New(
		ErrCodeMissingConfig,
		fmt.Sprintf("external server configuration is incomplete: %s", field),
	).SetHttpStatusCode(http.StatusInternalServerError)
}

// ErrCodeTransportFailure never surfaces as an error value: transport
// failures are a normal CallResult with status 0. The code exists for
// callers that map results onto user-facing messages.
const ErrCodeTransportFailure = "transport_failure"

const ErrCodeMalformedResponse = "malformed_response"

func newErrMalformedResponse(err error) *srvcerr.Error {
	return srvcerr.New(
		ErrCodeMalformedResponse,
		"the external server returned an unreadable grade response",
	).SetDebug(err).SetHttpStatusCode(http.StatusBadGateway)
}

const ErrCodeSignatureFailure = "signature_failure"

func newErrSignature(err error) *srvcerr.Error {
	return srvcerr.New(
		ErrCodeSignatureFailure,
		"could not compute the request signature",
	).SetDebug(err).SetHttpStatusCode(http.StatusInternalServerError)
}

const ErrCodeFileUnreadable = "file_unreadable"

func newErrFileUnreadable(err error) *srvcerr.Error {
	return srvcerr.New(
		ErrCodeFileUnreadable,
		"the submission file could not be read",
	).SetDebug(err).SetHttpStatusCode(http.StatusInternalServerError)
}
