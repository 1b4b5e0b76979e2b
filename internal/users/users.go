package users

import (
	"database/sql"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/crypto"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// Roles a user account can hold. Admins see every podcast's analytics;
// creators only their own.
const (
	RoleAdmin   = "admin"
	RoleCreator = "creator"
)

type User struct {
	ID                  uint   `gorm:"primaryKey"`
	Email               string `gorm:"uniqueIndex"`
	Name                string
	EncryptedPassword   string
	Role                string `gorm:"default:'creator';index"`
	ResetPasswordToken  sql.NullString
	ResetPasswordSentAt sql.NullTime
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ErrUserExists is returned when attempting to create a user that already exists.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when a user lookup fails.
var ErrUserNotFound = gorm.ErrRecordNotFound

// ErrResetTokenInvalid is returned when a password reset token is unknown or expired.
var ErrResetTokenInvalid = errors.New("invalid or expired reset token")

// FindByEmail retrieves a user by email.
func FindByEmail(db *gorm.DB, email string) (*User, error) {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID retrieves a user by ID.
func FindByID(db *gorm.DB, id uint) (*User, error) {
	var user User
	if err := db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser creates a new user with the supplied credentials and role.
// It returns ErrUserExists if the email is already taken.
func CreateUser(dbConn *gorm.DB, email, name, password, role string) (*User, error) {
	if _, err := FindByEmail(dbConn, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	if password == "" {
		return nil, errors.New("password cannot be empty")
	}
	if role == "" {
		role = RoleCreator
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return nil, err
	}

	newUser := User{
		Email:             email,
		Name:              name,
		EncryptedPassword: string(hashedPassword),
		Role:              role,
	}

	logger := slog.Default()
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Create(&newUser).Error
	})
	if err != nil {
		return nil, err
	}
	return &newUser, nil
}

// CreateAdminUser creates a new admin user with the supplied credentials.
func CreateAdminUser(dbConn *gorm.DB, email, password string) error {
	_, err := CreateUser(dbConn, email, "", password, RoleAdmin)
	return err
}

// VerifyPassword checks the supplied password against the stored hash.
func VerifyPassword(user *User, password string) bool {
	return crypto.VerifyPassword(user.EncryptedPassword, password)
}

// ChangePassword updates a user's password given their email.
func ChangePassword(dbConn *gorm.DB, email, password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}

	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return err
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Update("encrypted_password", string(hashedPassword)).Error
	})
}

// IssueResetToken generates a single-use password reset token for the user
// and records when it was issued. The token is returned so the caller can
// hand it to the mail delivery service.
func IssueResetToken(dbConn *gorm.DB, email string) (string, error) {
	user, err := FindByEmail(dbConn, email)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	logger := slog.Default()
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(user).Updates(map[string]interface{}{
			"reset_password_token":   token,
			"reset_password_sent_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResetPasswordWithToken consumes a reset token and sets a new password.
// Tokens older than ttl are rejected.
func ResetPasswordWithToken(dbConn *gorm.DB, token, password string, ttl time.Duration) error {
	if token == "" || password == "" {
		return ErrResetTokenInvalid
	}

	var user User
	if err := dbConn.Where("reset_password_token = ?", token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	if !user.ResetPasswordSentAt.Valid || time.Since(user.ResetPasswordSentAt.Time) > ttl {
		return ErrResetTokenInvalid
	}

	hashedPassword, err := crypto.GeneratePasswordHash(password)
	if err != nil {
		return err
	}

	logger := slog.Default()
	return sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Model(&user).Updates(map[string]interface{}{
			"encrypted_password":     string(hashedPassword),
			"reset_password_token":   nil,
			"reset_password_sent_at": nil,
		}).Error
	})
}

// PurgeExpiredResetTokens clears reset tokens older than ttl. Returns the
// number of rows touched.
func PurgeExpiredResetTokens(dbConn *gorm.DB, logger *slog.Logger, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)

	var affected int64
	err := sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&User{}).
			Where("reset_password_token IS NOT NULL AND reset_password_sent_at < ?", cutoff).
			Updates(map[string]interface{}{
				"reset_password_token":   nil,
				"reset_password_sent_at": nil,
			})
		affected = result.RowsAffected
		return result.Error
	})
	return affected, err
}

// SetupAdminUserIfNotExists creates a default admin in the database if it doesn't already exist
func SetupAdminUserIfNotExists(dbConn *gorm.DB, email string) {
	logger := slog.Default()
	hashedPassword, err := crypto.GeneratePasswordHash("password")
	if err != nil {
		logger.Error("Failed to generate password hash", slog.Any("error", err))
		return
	}
	err = sqlite.PerformWrite(logger, dbConn, func(tx *gorm.DB) error {
		return tx.Exec(`
            INSERT INTO users (email, encrypted_password, role, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?)
            ON CONFLICT(email) DO NOTHING
        `, email, hashedPassword, RoleAdmin, time.Now().UTC(), time.Now().UTC()).Error
	})
	if err != nil {
		logger.Error("Failed to upsert admin user", slog.String("email", email), slog.Any("error", err))
		return
	}
	logger.Info("Ensured admin user exists", slog.String("email", email))
}
