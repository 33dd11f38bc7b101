package service

import (
	"fmt"
	"testing"
	"video_edu_backend/internal/config"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/repository"
	"video_edu_backend/pkg/database"
	"video_edu_backend/pkg/logger"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv 测试环境：内存 sqlite + 全套服务，存储和邮件默认未配置
type testEnv struct {
	db          *gorm.DB
	cfg         *config.Config
	users       *repository.UserRepository
	courses     *repository.CourseRepository
	progress    *ProgressService
	enrollment  *EnrollmentService
	certificate *CertificateService
	storage     *StorageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.Log = zap.NewNop()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		// 单条写入不需要事务包装，竞争类测试依赖失败写入不回滚旁路数据
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		Certificate: config.CertificateConfig{AutoIssue: true, VerifyCacheMinutes: 10},
	}

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	videoRepo := repository.NewVideoProgressRepository(db)
	certRepo := repository.NewCertificateRepository(db)

	storage := &StorageService{}
	progress := NewProgressService(progressRepo, videoRepo)

	return &testEnv{
		db:         db,
		cfg:        cfg,
		users:      userRepo,
		courses:    courseRepo,
		progress:   progress,
		enrollment: NewEnrollmentService(progress, courseRepo, userRepo),
		certificate: NewCertificateService(
			certRepo, progressRepo, userRepo, courseRepo,
			NewPDFService(), storage, NewEmailService(cfg), nil, cfg,
		),
		storage: storage,
	}
}

func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		Role:     model.Student,
	}
	require.NoError(t, e.users.Create(user))
	return user
}

func (e *testEnv) createCourse(t *testing.T, title string, totalMinutes float64) *model.Course {
	t.Helper()
	course := &model.Course{
		Title:        title,
		TotalMinutes: totalMinutes,
		Published:    true,
	}
	require.NoError(t, e.courses.Create(course))
	return course
}

func (e *testEnv) enroll(t *testing.T, userID, courseID uint) *model.CourseProgress {
	t.Helper()
	progress, err := e.enrollment.Enroll(userID, courseID)
	require.NoError(t, err)
	return progress
}
