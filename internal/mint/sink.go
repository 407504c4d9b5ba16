// Package mint hands tier rewards to the external minting service over NATS request/reply.
package mint

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"listentier/internal/models"
	"listentier/internal/providers"
	"listentier/internal/services"
	"listentier/internal/structures"
)

const defaultTimeout = 5 * time.Second

var ErrMintDisabled = errors.New("minting is disabled")

// Reply is what the minting service answers on the request subject.
type Reply struct {
	TxID  string `json:"txId"`
	Error string `json:"error,omitempty"`
}

type natsSink struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	logger  providers.Logger
}

// NewMintSink connects to NATS when minting is enabled. The connection retries in the background,
// so an unreachable server fails individual mints rather than startup.
func NewMintSink(conf *structures.Config, logger providers.Logger) (services.MintSink, func(), error) {
	if !conf.Mint.Enabled {
		logger.Infof(providers.TypeApp, "Minting disabled")
		return &noopSink{}, func() {}, nil
	}

	nc, err := nats.Connect(conf.Mint.NatsURL,
		nats.Name(conf.AppName),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf(providers.TypeApp, "Mint NATS disconnected: %s", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof(providers.TypeApp, "Mint NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	timeout := conf.Mint.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger.Infof(providers.TypeApp, "Minting via NATS subject %s", conf.Mint.Subject)

	sink := &natsSink{nc: nc, subject: conf.Mint.Subject, timeout: timeout, logger: logger}
	return sink, func() { nc.Close() }, nil
}

func (s *natsSink) SubmitMint(ctx context.Context, req models.MintRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", models.NewMintError("encode mint request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := s.nc.RequestWithContext(ctx, s.subject, payload)
	if err != nil {
		return "", models.NewMintError("mint service did not answer", err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return "", models.NewMintError("malformed mint reply", err)
	}
	if reply.Error != "" {
		return "", models.NewMintError("mint rejected: "+reply.Error, nil)
	}
	if reply.TxID == "" {
		return "", models.NewMintError("mint reply has no transaction id", nil)
	}

	s.logger.Infof(providers.TypeApp, "Mint %s submitted for %s: tx %s", req.ID, req.Address, reply.TxID)
	return reply.TxID, nil
}

type noopSink struct{}

func (n *noopSink) SubmitMint(_ context.Context, _ models.MintRequest) (string, error) {
	return "", models.NewMintError("mint sink unavailable", ErrMintDisabled)
}
