package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"
	"video_edu_backend/internal/model"
	"video_edu_backend/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func validCert(userID, courseID uint, number string) *model.Certificate {
	key := uint8(1)
	now := time.Now()
	return &model.Certificate{
		UserID:            userID,
		CourseID:          courseID,
		CertificateNumber: number,
		VerificationCode:  "CODE" + number,
		StudentName:       "student",
		CourseTitle:       "course",
		CompletionDate:    now,
		IsValid:           true,
		ValidKey:          &key,
		IssueDate:         now,
	}
}

func TestDuplicateValidPairIsRejected(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))

	require.NoError(t, repo.Create(validCert(1, 1, "CERT-202608-0001")))

	err := repo.Create(validCert(1, 1, "CERT-202608-0002"))
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestRevokedCertificatesDoNotBlockNewOnes(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))

	first := validCert(1, 1, "CERT-202608-0001")
	require.NoError(t, repo.Create(first))

	first.Invalidate("revoked", time.Now())
	require.NoError(t, repo.Save(first))

	// 退出唯一键后可以再签发，任意多条失效记录互不冲突
	second := validCert(1, 1, "CERT-202608-0002")
	require.NoError(t, repo.Create(second))

	second.Invalidate("revoked again", time.Now())
	require.NoError(t, repo.Save(second))
	require.NoError(t, repo.Create(validCert(1, 1, "CERT-202608-0003")))
}

func TestDuplicateCertificateNumberIsRejected(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))

	require.NoError(t, repo.Create(validCert(1, 1, "CERT-202608-0001")))

	dup := validCert(2, 2, "CERT-202608-0001")
	dup.VerificationCode = "OTHERCODE"
	err := repo.Create(dup)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey))
}

func TestCountCreatedInRange(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))

	require.NoError(t, repo.Create(validCert(1, 1, "CERT-202608-0001")))
	require.NoError(t, repo.Create(validCert(2, 1, "CERT-202608-0002")))

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	count, err := repo.CountCreatedInRange(monthStart, nextMonth)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// 上个月没有记录
	count, err = repo.CountCreatedInRange(monthStart.AddDate(0, -1, 0), monthStart)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestFindByVerificationCodeIgnoresRevoked(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))

	cert := validCert(1, 1, "CERT-202608-0001")
	require.NoError(t, repo.Create(cert))

	found, err := repo.FindByVerificationCode(cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, cert.ID, found.ID)

	cert.Invalidate("revoked", time.Now())
	require.NoError(t, repo.Save(cert))

	_, err = repo.FindByVerificationCode(cert.VerificationCode)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestClearStaleValidKeys(t *testing.T) {
	db := newTestDB(t)
	repo := NewCertificateRepository(db)

	cert := validCert(1, 1, "CERT-202608-0001")
	require.NoError(t, repo.Create(cert))

	// 模拟只翻转了 is_valid、没有退出唯一键的旧数据
	require.NoError(t, db.Model(cert).Update("is_valid", false).Error)

	require.NoError(t, repo.ClearStaleValidKeys(1, 1))
	require.NoError(t, repo.Create(validCert(1, 1, "CERT-202608-0002")))
}
