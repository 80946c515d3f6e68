package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"user-ingest/internal/auth"
	"user-ingest/internal/model"
)

const defaultQueryTimeout = 5 * time.Second

// RecordLister is the read side of the store used by the HTTP service.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]model.Record, error)
	Ping(ctx context.Context) error
}

type API struct {
	Log          *zap.Logger
	Storage      RecordLister
	Auth         *auth.Authenticator
	QueryTimeout time.Duration
}

func NewAPI(log *zap.Logger, store RecordLister, authn *auth.Authenticator, queryTimeout time.Duration) *API {
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	return &API{
		Log:          log,
		Storage:      store,
		Auth:         authn,
		QueryTimeout: queryTimeout,
	}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type DataResponse struct {
	Data []model.Record `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
