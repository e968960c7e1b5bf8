package common

import (
	"log"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func ConnectDb() *gorm.DB {
	dbFile := os.Getenv("sqlite_db")
	log.Println("attemptConnectDb: sqlite_db from env (raw):", dbFile)
	if dbFile == "" {
		log.Println("sqlite_db not set")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(dbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening sqlite db: " + err.Error())
		return nil
	}
	log.Println("opened sqlite db at:", dbFile)
	return db
}

// ConnectSearchDb opens the separate suggestion-index database.
// Returning nil just disables autocomplete indexing, it is not fatal.
func ConnectSearchDb() *gorm.DB {
	searchDbFile := os.Getenv("search_db")
	log.Println("attemptConnectSearchDb: search_db from env (raw):", searchDbFile)

	if searchDbFile == "" {
		log.Println("search_db not set - autocomplete indexing will be disabled")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(searchDbFile), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("Error opening search sqlite db: " + err.Error())
		return nil
	}

	log.Println("opened search sqlite db at:", searchDbFile)
	return db
}
