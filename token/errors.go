package token

import (
	"fmt"
	"net/http"

	"github.com/programme-lv/extserver/srvcerr"
)

const ErrCodeOAuthConfigIncomplete = "oauth_config_incomplete"

func newErrOAuthConfigIncomplete() *srvcerr.Error {
	return srvcerr.New(
		ErrCodeOAuthConfigIncomplete,
		"server is missing its token endpoint or client id",
	).SetHttpStatusCode(http.StatusInternalServerError)
}

// ErrCodeTokenAcquisition distinguishes "could not obtain token" from
// general connectivity failures so the UI can say which one happened.
const ErrCodeTokenAcquisition = "token_acquisition_failed"

func newErrTokenAcquisition(status int) *srvcerr.Error {
	return srvcerr.New(
		ErrCodeTokenAcquisition,
		fmt.Sprintf("could not obtain access token (status %d)", status),
	).SetHttpStatusCode(http.StatusBadGateway)
}
