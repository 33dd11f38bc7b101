package service

import (
	"errors"
	"fmt"
	"time"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/repository"
	"video_edu_backend/internal/util"
	"video_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProgressService 维护课程进度聚合。聚合的 completedMinutes/percentage
// 只允许从这里的两种更新模式写入：按视频上报（汇总所有视频记录）或
// 直接累加观看分钟数。同一门课两种模式混用会重复计数，直接拒绝。
type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	VideoRepo    *repository.VideoProgressRepository
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	videoRepo *repository.VideoProgressRepository,
) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		VideoRepo:    videoRepo,
	}
}

// ApplyVideoUpdate 写入单个视频的观看数据，然后整体重算课程聚合。
// 没有聚合记录（未报名）时视频记录照常落库，聚合保持不存在。
func (s *ProgressService) ApplyVideoUpdate(userID, courseID uint, videoID string, completedMinutes float64, percentage int) (*model.CourseProgress, *model.VideoProgress, error) {
	if videoID == "" {
		return nil, nil, util.NewValidationError("videoId is required")
	}
	if completedMinutes < 0 {
		return nil, nil, util.NewValidationError("completedMinutes cannot be negative")
	}
	if percentage < 0 || percentage > 100 {
		return nil, nil, util.NewValidationError("percentage must be between 0 and 100")
	}

	aggregate, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, err
	}

	if aggregate != nil {
		if err := s.ensureVideoMode(aggregate); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()

	video, err := s.VideoRepo.FindByTriple(userID, courseID, videoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		video = &model.VideoProgress{
			UserID:   userID,
			CourseID: courseID,
			VideoID:  videoID,
		}
	} else if err != nil {
		return nil, nil, err
	}

	video.RecordWatch(completedMinutes, percentage, now)
	if err := s.VideoRepo.Save(video); err != nil {
		return nil, nil, err
	}

	if aggregate == nil {
		logger.Log.Debug("video progress recorded without enrollment",
			zap.Uint("userId", userID), zap.Uint("courseId", courseID), zap.String("videoId", videoID))
		return nil, video, nil
	}

	if err := s.recompute(aggregate, now); err != nil {
		return nil, nil, err
	}
	return aggregate, video, nil
}

// ApplyDirectIncrement 绕过视频粒度，直接累加观看分钟数，封顶于课程总时长
func (s *ProgressService) ApplyDirectIncrement(userID, courseID uint, watchedMinutes float64) (*model.CourseProgress, error) {
	if watchedMinutes < 0 {
		return nil, util.NewValidationError("watchedMinutes cannot be negative")
	}

	aggregate, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("progress record not found, enrollment required")
	} else if err != nil {
		return nil, err
	}

	if watchedMinutes > aggregate.TotalMinutes {
		return nil, util.NewValidationError("watchedMinutes cannot exceed total course duration")
	}

	videoCount, err := s.VideoRepo.CountByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}
	if videoCount > 0 {
		return nil, util.NewValidationError("course is tracked per video, direct increments are not allowed")
	}

	aggregate.CompletedMinutes += watchedMinutes
	aggregate.Recalculate(time.Now())
	if err := s.ProgressRepo.Save(aggregate); err != nil {
		return nil, err
	}
	return aggregate, nil
}

// OverwriteTotal 管理/报名路径的整体覆写，也是聚合记录唯一的创建入口。
// 传入的 percentage 经钳制后仍会按分钟数重新推导，保证不变量成立。
func (s *ProgressService) OverwriteTotal(userID, courseID uint, completedMinutes float64, percentage int, totalMinutes float64) (*model.CourseProgress, error) {
	if totalMinutes < 0 {
		return nil, util.NewValidationError("totalMinutes cannot be negative")
	}
	if completedMinutes < 0 {
		completedMinutes = 0
	}
	if completedMinutes > totalMinutes {
		completedMinutes = totalMinutes
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	now := time.Now()

	aggregate, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		aggregate = &model.CourseProgress{
			UserID:   userID,
			CourseID: courseID,
		}
	} else if err != nil {
		return nil, err
	}

	aggregate.CompletedMinutes = completedMinutes
	aggregate.TotalMinutes = totalMinutes
	aggregate.Percentage = percentage
	aggregate.Recalculate(now)

	if err := s.ProgressRepo.Save(aggregate); err != nil {
		return nil, err
	}
	return aggregate, nil
}

// ResetVideo 清零单个视频并整体重算，高权重视频被重置后聚合会相应回落
func (s *ProgressService) ResetVideo(userID, courseID uint, videoID string) (*model.CourseProgress, error) {
	if videoID == "" {
		return nil, util.NewValidationError("videoId is required")
	}

	video, err := s.VideoRepo.FindByTriple(userID, courseID, videoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("video progress not found")
	} else if err != nil {
		return nil, err
	}

	now := time.Now()
	video.Reset(now)
	if err := s.VideoRepo.Save(video); err != nil {
		return nil, err
	}

	aggregate, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	if err := s.recompute(aggregate, now); err != nil {
		return nil, err
	}
	return aggregate, nil
}

func (s *ProgressService) GetProgress(userID, courseID uint) (*model.CourseProgress, error) {
	aggregate, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("progress record not found")
	} else if err != nil {
		return nil, err
	}
	return aggregate, nil
}

func (s *ProgressService) ListUserProgress(userID uint) ([]model.CourseProgress, error) {
	return s.ProgressRepo.ListByUser(userID)
}

func (s *ProgressService) ListProgressReview() ([]repository.ProgressReview, error) {
	return s.ProgressRepo.ListWithDetails()
}

// ensureVideoMode 聚合已有直接累加的分钟数且没有任何视频记录时，
// 该课程处于直接累加模式，按视频上报会重复计数
func (s *ProgressService) ensureVideoMode(aggregate *model.CourseProgress) error {
	if aggregate.CompletedMinutes <= 0 {
		return nil
	}
	count, err := s.VideoRepo.CountByUserAndCourse(aggregate.UserID, aggregate.CourseID)
	if err != nil {
		return err
	}
	if count == 0 {
		return util.NewValidationError("course is tracked by direct increments, per-video reporting is not allowed")
	}
	return nil
}

// recompute 以当前全部视频记录为准整体重算聚合，结果与调用次数无关
func (s *ProgressService) recompute(aggregate *model.CourseProgress, now time.Time) error {
	videos, err := s.VideoRepo.ListByUserAndCourse(aggregate.UserID, aggregate.CourseID)
	if err != nil {
		return err
	}

	var sum float64
	for _, v := range videos {
		sum += v.CompletedMinutes
	}

	aggregate.CompletedMinutes = sum
	aggregate.Recalculate(now)
	if err := s.ProgressRepo.Save(aggregate); err != nil {
		return err
	}

	logger.Log.Debug("course progress recomputed",
		zap.Uint("userId", aggregate.UserID),
		zap.Uint("courseId", aggregate.CourseID),
		zap.String("summary", FormatSummary(aggregate)))
	return nil
}

// FormatSummary 日志里用的一行摘要
func FormatSummary(p *model.CourseProgress) string {
	return fmt.Sprintf("%.1f/%.1f min (%d%%, %s)", p.CompletedMinutes, p.TotalMinutes, p.Percentage, p.Status)
}
