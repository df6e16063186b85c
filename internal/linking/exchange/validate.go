// Package exchange provides the Exchanger implementations that trade an
// authorization code for linked account data.
package exchange

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
	"github.com/devilmonastery/creatorlink/internal/linking"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func accountValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// checkAccount rejects payloads without an external identity
func checkAccount(account *entities.LinkedAccount) error {
	if account == nil {
		return &linking.ExchangeError{Reason: "provider returned no account"}
	}
	if err := accountValidator().Struct(account); err != nil {
		return &linking.ExchangeError{Reason: "provider returned an invalid account", Err: fmt.Errorf("validate: %w", err)}
	}
	return nil
}
