package database

import "gorm.io/gorm"

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// DB нужен командам CLI и тестам
func (d *Database) DB() *gorm.DB {
	return d.db
}
