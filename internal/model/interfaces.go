package model

import (
	"context"
	"time"

	"github.com/harunnryd/bluservice/internal/model/contract"
)

// Client is a single round trip to the remote model. Implementations must not
// modify req.Messages and must keep their order.
type Client interface {
	Complete(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
}

type Provider interface {
	Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Name() string
}

// Observer receives one callback per provider round trip.
type Observer interface {
	ObserveModelCall(provider, model string, duration time.Duration, usage contract.Usage, err error)
}
