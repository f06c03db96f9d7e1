package db

import (
	"log"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/orionai/orion/internal/chat"
	"github.com/orionai/orion/internal/models"
)

// Connect opens the database and runs migrations. MySQL DSNs (the
// "user:pass@tcp(...)" form) use the mysql driver; anything else is
// treated as a sqlite path, which keeps local development dependency-free.
func Connect(dsn string) *gorm.DB {
	var dialector gorm.Dialector
	if strings.Contains(dsn, "@tcp(") {
		dialector = mysql.Open(dsn)
	} else {
		dialector = gormsqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	if err := gdb.AutoMigrate(&models.User{}, &chat.Session{}, &chat.Message{}, &chat.Job{}); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
