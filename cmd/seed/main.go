package main

import (
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"

	"github.com/centz/backend/internal/database"
)

type seedUser struct {
	fullName    string
	email       string
	phoneNumber string
}

var seedUsers = []seedUser{
	{"Alice Martin", "alice.martin@example.com", "+33612345601"},
	{"Bruno Lefevre", "bruno.lefevre@example.com", "+33612345602"},
	{"Chloe Dubois", "chloe.dubois@example.com", "+33612345603"},
	{"David Moreau", "david.moreau@example.com", "+33612345604"},
	{"Emma Laurent", "emma.laurent@example.com", "+33612345605"},
}

var seedMessages = []string{
	"Merci pour le déjeuner !",
	"Remboursement cinéma",
	"Pour le cadeau de Sarah",
	"Part de l'addition d'hier soir",
	"Merci encore !",
	"Courses de la semaine",
}

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	db := database.InitDatabase()
	defer db.Close()

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ids, err := seedAccounts(db)
	if err != nil {
		log.Fatalf("Seeding accounts failed: %v", err)
	}

	if err := seedTransactions(db, ids); err != nil {
		log.Fatalf("Seeding transactions failed: %v", err)
	}

	log.Printf("[SEED] Done: %d demo accounts", len(ids))
}

// seedAccounts inserts the demo users, skipping any phone number already
// present. Every account gets the password "password123".
func seedAccounts(db *sql.DB) ([]int, error) {
	hashed, err := hashPassword("password123")
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(seedUsers))
	for _, u := range seedUsers {
		var id int
		err := db.QueryRow(`SELECT id FROM users WHERE phone_number = $1`, u.phoneNumber).Scan(&id)
		if err == sql.ErrNoRows {
			balance := decimal.NewFromFloat(1000 + rand.Float64()*9000).Round(2)
			err = db.QueryRow(`
				INSERT INTO users (full_name, email, phone_number, password, balance, level, xp, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
				RETURNING id`,
				u.fullName, u.email, u.phoneNumber, hashed, balance,
				rand.Intn(11), rand.Intn(1001)).Scan(&id)
		}
		if err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", u.email, err)
		}

		log.Printf("[SEED] User %d (%s)", id, u.fullName)
		ids = append(ids, id)
	}
	return ids, nil
}

// seedTransactions writes a handful of completed transfers between the demo
// accounts, backdated up to five days.
func seedTransactions(db *sql.DB, ids []int) error {
	if len(ids) < 2 {
		return nil
	}

	for i := 0; i < 15; i++ {
		sender := ids[rand.Intn(len(ids))]
		receiver := ids[rand.Intn(len(ids))]
		if sender == receiver {
			continue
		}

		amount := decimal.NewFromFloat(10 + rand.Float64()*40).Round(2)
		message := seedMessages[rand.Intn(len(seedMessages))]
		createdAt := time.Now().UTC().Add(-time.Duration(rand.Intn(5*24)) * time.Hour)

		_, err := db.Exec(`
			INSERT INTO transactions (id, sender_id, receiver_id, amount, type, status, message, created_at, processed_at)
			VALUES ($1, $2, $3, $4, 'p2p', 'completed', $5, $6, $6)`,
			uuid.NewString(), sender, receiver, amount, message, createdAt)
		if err != nil {
			return fmt.Errorf("seeding transaction: %w", err)
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}
