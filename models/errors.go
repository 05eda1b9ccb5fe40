package models

import (
	"errors"

	"github.com/grupovitrine/painel_backend/utils"
	"gorm.io/gorm"
)

// normalizeNotFound maps gorm's not-found sentinel onto the one the REST
// handlers branch on for 404 responses.
func normalizeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.ErrorRecordNotFound
	}
	return err
}
