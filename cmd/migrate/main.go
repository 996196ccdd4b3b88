package main

import (
	"crypto/sha1"
	"encoding/hex"
	"log"
	"os"

	"agency/internal/app/ds"
	"agency/internal/app/dsn"
	"agency/internal/app/role"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Загрузка переменных окружения из .env файла
	_ = godotenv.Load()

	// Получение DSN строки подключения
	dsnStr := dsn.FromEnv()
	if dsnStr == "" {
		log.Fatal("DSN string is empty. Check your .env file")
	}

	// Подключение к базе данных
	db, err := gorm.Open(postgres.Open(dsnStr), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Connected to database successfully")

	// Миграция всех моделей
	err = db.AutoMigrate(
		&ds.User{},
		&ds.Client{},
		&ds.Request{},
		&ds.RequestService{},
		&ds.PayoutLedgerEntry{},
		&ds.StatusHistoryEntry{},
		&ds.Payment{},
		&ds.Message{},
		&ds.AuditLogEntry{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	log.Println("Database migration completed successfully")

	if os.Getenv("SEED_DEMO") == "true" {
		seedDemoUsers(db)
	}
}

func hashPassword(password string) string {
	h := sha1.New()
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}

// seedDemoUsers создает демо-аккаунты для локальной разработки
func seedDemoUsers(db *gorm.DB) {
	password := hashPassword("Demo123!")

	users := []ds.User{
		{
			Email:            "admin@agency.com",
			Password:         password,
			Name:             "Администратор Иванов",
			Role:             role.Admin,
			PayoutPercentage: decimal.Zero,
			TelegramUsername: "@admin_agency",
			Phone:            "+7 (999) 123-45-67",
			IsActive:         true,
		},
		{
			Email:            "manager@agency.com",
			Password:         password,
			Name:             "Менеджер Петров",
			Role:             role.Manager,
			PayoutPercentage: decimal.NewFromFloat(5.0),
			TelegramUsername: "@manager_agency",
			Phone:            "+7 (999) 234-56-78",
			IsActive:         true,
		},
		{
			Email:            "accountant@agency.com",
			Password:         password,
			Name:             "Бухгалтер Сидорова",
			Role:             role.Accountant,
			PayoutPercentage: decimal.Zero,
			TelegramUsername: "@accountant_agency",
			Phone:            "+7 (999) 345-67-89",
			IsActive:         true,
		},
		{
			Email:            "developer@agency.com",
			Password:         password,
			Name:             "Разработчик Смирнов",
			Role:             role.Developer,
			PayoutPercentage: decimal.NewFromFloat(10.0),
			TelegramUsername: "@dev_agency",
			Phone:            "+7 (999) 456-78-90",
			IsActive:         true,
		},
		{
			Email:            "support@agency.com",
			Password:         password,
			Name:             "Поддержка Козлов",
			Role:             role.SupportDeveloper,
			PayoutPercentage: decimal.NewFromFloat(8.0),
			TelegramUsername: "@support_agency",
			Phone:            "+7 (999) 567-89-01",
			IsActive:         true,
		},
	}

	for _, u := range users {
		var existing ds.User
		if err := db.Where("email = ?", u.Email).First(&existing).Error; err == nil {
			continue
		}
		if err := db.Create(&u).Error; err != nil {
			log.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
	}

	log.Println("Demo users seeded")
}
