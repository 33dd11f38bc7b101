package service

import (
	"errors"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/repository"
	"video_edu_backend/internal/util"
	"video_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EnrollmentService 报名即创建进度聚合记录，进度记录的存在等价于选课资格
type EnrollmentService struct {
	Progress   *ProgressService
	CourseRepo *repository.CourseRepository
	UserRepo   *repository.UserRepository
}

func NewEnrollmentService(
	progress *ProgressService,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
) *EnrollmentService {
	return &EnrollmentService{
		Progress:   progress,
		CourseRepo: courseRepo,
		UserRepo:   userRepo,
	}
}

// Enroll 自助报名，幂等：已有进度记录时原样返回
func (s *EnrollmentService) Enroll(userID, courseID uint) (*model.CourseProgress, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("course not found")
	} else if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, util.NewValidationError("course is not published")
	}

	existing, err := s.Progress.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.Progress.OverwriteTotal(userID, courseID, 0, 0, course.TotalMinutes)
}

// GrantAccess 管理员按邮箱和课程标题开通访问权，课程无需已发布
func (s *EnrollmentService) GrantAccess(email, courseTitle string) (*model.CourseProgress, error) {
	if email == "" || courseTitle == "" {
		return nil, util.NewValidationError("email and courseTitle are required")
	}

	user, err := s.UserRepo.FindByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("user not found")
	} else if err != nil {
		return nil, err
	}

	course, err := s.CourseRepo.FindByTitle(courseTitle)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("course not found")
	} else if err != nil {
		return nil, err
	}

	existing, err := s.Progress.ProgressRepo.FindByUserAndCourse(user.ID, course.ID)
	if err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	progress, err := s.Progress.OverwriteTotal(user.ID, course.ID, 0, 0, course.TotalMinutes)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("course access granted",
		zap.String("email", email), zap.String("course", courseTitle))
	return progress, nil
}
