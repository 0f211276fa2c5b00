package database

import (
	"fmt"
	"os"

	"visitor-gate/logger"
	"visitor-gate/models/activity"
	"visitor-gate/models/notification"
	"visitor-gate/models/user"
	"visitor-gate/models/visit"
	"visitor-gate/models/visitor"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection with auto migration and indexing
func InitDB() (*gorm.DB, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	dbUser := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE") // Optional: "disable", "require", etc.

	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, dbUser, password, database, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := autoMigrate(); err != nil {
		logger.Error("Failed to run migrations", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	if err := createForeignKeyConstraints(); err != nil {
		logger.Error("Failed to create foreign key constraints", err)
		return nil, err
	}
	logger.Success("All foreign key constraints created successfully")

	if err := createIndexes(); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return DB, nil
}

// autoMigrate runs auto migration for all models in dependency order
func autoMigrate() error {
	// Stage 1: Core foundation models
	stage1Models := []interface{}{
		&user.User{},
		&visitor.Visitor{},
	}

	for _, model := range stage1Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: Models with dependencies on Stage 1
	stage2Models := []interface{}{
		&visit.Visit{},
	}

	for _, model := range stage2Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: Remaining models
	remainingModels := []interface{}{
		&notification.Notification{},
		&activity.Log{},
	}

	for _, model := range remainingModels {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// createIndexes creates additional indexes for better performance
func createIndexes() error {
	// User indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)").Error; err != nil {
		return fmt.Errorf("failed to create user email index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)").Error; err != nil {
		return fmt.Errorf("failed to create user role index: %w", err)
	}

	// Visitor indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visitors_email ON visitors(email)").Error; err != nil {
		return fmt.Errorf("failed to create visitor email index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visitors_is_blacklisted ON visitors(is_blacklisted)").Error; err != nil {
		return fmt.Errorf("failed to create visitor blacklist index: %w", err)
	}

	// Visit indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_status ON visits(status)").Error; err != nil {
		return fmt.Errorf("failed to create visit status index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_scheduled_date ON visits(scheduled_date)").Error; err != nil {
		return fmt.Errorf("failed to create visit scheduled_date index: %w", err)
	}
	if err := DB.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_visits_pass_number ON visits(pass_number) WHERE pass_number IS NOT NULL").Error; err != nil {
		return fmt.Errorf("failed to create visit pass_number index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_visitor_status ON visits(visitor_id, status)").Error; err != nil {
		return fmt.Errorf("failed to create visit visitor_status index: %w", err)
	}

	// Notification indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_notifications_user_read ON notifications(user_id, is_read)").Error; err != nil {
		return fmt.Errorf("failed to create notification user_read index: %w", err)
	}

	// Activity log indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create activity created_at index: %w", err)
	}

	return nil
}

// createForeignKeyConstraints creates foreign key constraints after auto migration
func createForeignKeyConstraints() error {
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_visits_visitor",
			sql: `ALTER TABLE visits ADD CONSTRAINT fk_visits_visitor
				  FOREIGN KEY (visitor_id) REFERENCES visitors(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_visits_host",
			sql: `ALTER TABLE visits ADD CONSTRAINT fk_visits_host
				  FOREIGN KEY (host_employee_id) REFERENCES users(id)
				  ON UPDATE CASCADE ON DELETE RESTRICT`,
		},
		{
			name: "fk_notifications_user",
			sql: `ALTER TABLE notifications ADD CONSTRAINT fk_notifications_user
				  FOREIGN KEY (user_id) REFERENCES users(id)
				  ON UPDATE CASCADE ON DELETE CASCADE`,
		},
	}

	for _, constraint := range constraints {
		var exists bool
		checkSQL := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE constraint_name = $1
			)
		`

		err := DB.Raw(checkSQL, constraint.name).Scan(&exists).Error
		if err != nil {
			logger.Warning(fmt.Sprintf("Failed to check constraint existence: %s - Error: %v", constraint.name, err))
			continue
		}

		if !exists {
			if err := DB.Exec(constraint.sql).Error; err != nil {
				logger.Warning(fmt.Sprintf("Failed to create constraint: %s - Error: %v", constraint.name, err))
			} else {
				logger.Success(fmt.Sprintf("Successfully created constraint: %s", constraint.name))
			}
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
