// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/pkg/errutil"
)

// CodeRequestInvalid marks a request body that could not be decoded.
const CodeRequestInvalid = "REQUEST_INVALID"

// Error names returned in the "error" field of a failure body.
const (
	ErrorEmailInUse         = "EmailInUse"
	ErrorInvalidCredentials = "InvalidCredentials"
	ErrorMissingToken       = "MissingToken"
	ErrorUnauthenticated    = "Unauthenticated"
	ErrorHashing            = "HashingError"
	ErrorVerification       = "VerificationError"
	ErrorStorageUnavailable = "StorageUnavailable"
	ErrorInvalidRequest     = "InvalidRequest"
	ErrorInternal           = "InternalError"
)

type errorMapping struct {
	status int
	name   string
}

var errorMappings = map[string]errorMapping{
	auth.CodeEmailInUse:         {http.StatusBadRequest, ErrorEmailInUse},
	auth.CodeInvalidCredentials: {http.StatusUnauthorized, ErrorInvalidCredentials},
	auth.CodeMissingToken:       {http.StatusBadRequest, ErrorMissingToken},
	auth.CodeUnauthenticated:    {http.StatusUnauthorized, ErrorUnauthenticated},
	auth.CodeHashingFailed:      {http.StatusBadRequest, ErrorHashing},
	auth.CodeInvalidDigest:      {http.StatusInternalServerError, ErrorVerification},
	auth.CodeStorageUnavailable: {http.StatusInternalServerError, ErrorStorageUnavailable},
	auth.CodeInvalidAccount:     {http.StatusBadRequest, ErrorInvalidRequest},
	CodeRequestInvalid:          {http.StatusBadRequest, ErrorInvalidRequest},
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusFor maps an error to its HTTP status and public error name.
// Errors without a known code map to 500.
func StatusFor(err error) (int, string) {
	if m, ok := errorMappings[errutil.Code(err)]; ok {
		return m.status, m.name
	}
	return http.StatusInternalServerError, ErrorInternal
}

// publicMessage hides internal detail for server-side failures.
func publicMessage(status int, err error) string {
	switch {
	case errutil.HasCode(err, auth.CodeStorageUnavailable):
		return "storage is temporarily unavailable"
	case status >= http.StatusInternalServerError:
		return "internal error"
	default:
		return err.Error()
	}
}

// abortWithError writes the failure body and stops the handler chain.
func abortWithError(c *gin.Context, logger *slog.Logger, err error) {
	status, name := StatusFor(err)
	if status >= http.StatusInternalServerError {
		attrs := append(errutil.Attrs(err), "route", c.FullPath())
		logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: name, Message: publicMessage(status, err)})
}
