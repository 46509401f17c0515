package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/replyloop/replyloop/db/models"
)

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(
		&models.ActionRecord{},
		&models.ShopConnection{},
	)
}
