package providers

import (
	"errors"
	"fmt"

	"github.com/gookit/validate"

	"listentier/internal/structures"
)

type CnfValidatorInterface interface {
	Validate() error
}

type CnfValidator struct {
	conf *structures.Config
}

func NewCnfValidator(conf *structures.Config) CnfValidatorInterface {
	return &CnfValidator{conf: conf}
}

// Validate runs the struct tag rules, then the rules that span several fields.
func (c *CnfValidator) Validate() error {
	v := validate.Struct(c.conf)
	v.StopOnError = false
	if !v.Validate() {
		return fmt.Errorf("invalid config: %w", v.Errors)
	}

	var errs []error
	if c.conf.Persistence.Backend != "memory" && c.conf.Persistence.Path == "" {
		errs = append(errs, fmt.Errorf("persistence.path is required for the %s backend", c.conf.Persistence.Backend))
	}
	if c.conf.Mint.Enabled && (c.conf.Mint.NatsURL == "" || c.conf.Mint.Subject == "") {
		errs = append(errs, errors.New("mint.natsURL and mint.subject are required when minting is enabled"))
	}
	if c.conf.Sync.Enabled && c.conf.Sync.AccessToken == "" && (c.conf.Sync.RefreshToken == "" || c.conf.Sync.ClientID == "") {
		errs = append(errs, errors.New("sync needs sync.accessToken or sync.refreshToken with sync.clientID"))
	}
	if c.conf.Sync.MaxRetries < 0 || c.conf.Sync.MaxPages < 0 {
		errs = append(errs, errors.New("sync.maxRetries and sync.maxPages must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
