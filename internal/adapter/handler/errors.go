package handler

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

const (
	codeInvalidRequest    = "invalid_request"
	codeInsufficientStock = "insufficient_stock"
	codePriceMismatch     = "price_mismatch"
	codeNotFound          = "not_found"
	codeInvalidTransition = "invalid_transition"
	codeDuplicateRequest  = "duplicate_request"
	codeStoreUnavailable  = "store_unavailable"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal_error"
)

type errorMapping struct {
	target error
	status int
	grpc   codes.Code
	code   string
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, codes.InvalidArgument, codeInvalidRequest},
	{domain.ErrInsufficientStock, http.StatusConflict, codes.FailedPrecondition, codeInsufficientStock},
	{domain.ErrPriceMismatch, http.StatusConflict, codes.Aborted, codePriceMismatch},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.Aborted, codeDuplicateRequest},
	{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition, codeInvalidTransition},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound, codeNotFound},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codes.Unavailable, codeStoreUnavailable},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, codes.Unavailable, codeStoreUnavailable},
}

func classifyError(err error) errorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m
		}
	}
	return errorMapping{status: http.StatusInternalServerError, grpc: codes.Internal, code: codeInternal}
}

// publicMessage hides internal failures from clients.
func publicMessage(err error, m errorMapping) string {
	switch m.code {
	case codeInternal:
		return "internal error"
	case codeStoreUnavailable:
		return "store unavailable, retry later"
	}
	return err.Error()
}
