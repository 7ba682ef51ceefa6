package auth

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/medicura/medicura-backend/internal/users"
	pkgAuth "github.com/medicura/medicura-backend/pkg/auth"
	"github.com/medicura/medicura-backend/pkg/config"
	"github.com/medicura/medicura-backend/pkg/db/models"
	"github.com/medicura/medicura-backend/pkg/enums"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/security"
)

func setupAuthTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func testAuthJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "auth-test-secret",
		Issuer:            "medicura-test",
		ExpirationMinutes: 15,
	}
}

func newAuthService(db *gorm.DB) Service {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewService(users.NewRepository(db), testAuthJWTConfig(), logg)
}

func seedAccount(t *testing.T, db *gorm.DB, email, password string, role enums.UserRole) *models.User {
	t.Helper()

	hash, err := security.HashPassword(password, config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	})
	require.NoError(t, err)

	user := &models.User{
		Username:     "rahim",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, users.NewRepository(db).Create(context.Background(), user))
	return user
}

func TestLoginIssuesToken(t *testing.T) {
	t.Parallel()

	db := setupAuthTestDB(t)
	svc := newAuthService(db)
	user := seedAccount(t, db, "rahim@example.com", "s3cret-pass", enums.UserRolePatient)

	result, err := svc.Login(context.Background(), "rahim@example.com", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, user.ID.String(), result.UserID)
	require.Equal(t, "rahim", result.Username)
	require.Equal(t, string(enums.UserRolePatient), result.Role)

	claims, err := pkgAuth.ParseAccessToken(testAuthJWTConfig(), result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, enums.UserRolePatient, claims.Role)
}

func TestLoginIsCaseInsensitiveOnEmail(t *testing.T) {
	t.Parallel()

	db := setupAuthTestDB(t)
	svc := newAuthService(db)
	seedAccount(t, db, "rahim@example.com", "s3cret-pass", enums.UserRolePatient)

	_, err := svc.Login(context.Background(), "  Rahim@Example.COM ", "s3cret-pass")
	require.NoError(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	db := setupAuthTestDB(t)
	svc := newAuthService(db)
	seedAccount(t, db, "rahim@example.com", "s3cret-pass", enums.UserRolePatient)

	_, err := svc.Login(context.Background(), "rahim@example.com", "wrong-pass")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginUnknownEmailAnswersLikeWrongPassword(t *testing.T) {
	t.Parallel()

	db := setupAuthTestDB(t)
	svc := newAuthService(db)
	seedAccount(t, db, "rahim@example.com", "s3cret-pass", enums.UserRolePatient)

	_, wrongPassErr := svc.Login(context.Background(), "rahim@example.com", "wrong-pass")
	_, unknownErr := svc.Login(context.Background(), "nobody@example.com", "s3cret-pass")

	require.True(t, pkgerrors.IsCode(wrongPassErr, pkgerrors.CodeUnauthorized))
	require.True(t, pkgerrors.IsCode(unknownErr, pkgerrors.CodeUnauthorized))
	require.Equal(t, wrongPassErr.Error(), unknownErr.Error())
}
