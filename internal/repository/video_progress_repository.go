package repository

import (
	"video_edu_backend/internal/model"

	"gorm.io/gorm"
)

type VideoProgressRepository struct {
	DB *gorm.DB
}

func NewVideoProgressRepository(db *gorm.DB) *VideoProgressRepository {
	return &VideoProgressRepository{DB: db}
}

func (r *VideoProgressRepository) Save(progress *model.VideoProgress) error {
	return r.DB.Save(progress).Error
}

func (r *VideoProgressRepository) FindByTriple(userID, courseID uint, videoID string) (*model.VideoProgress, error) {
	var progress model.VideoProgress
	err := r.DB.Where("user_id = ? AND course_id = ? AND video_id = ?", userID, courseID, videoID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *VideoProgressRepository) ListByUserAndCourse(userID, courseID uint) ([]model.VideoProgress, error) {
	var list []model.VideoProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Find(&list).Error
	return list, err
}

func (r *VideoProgressRepository) CountByUserAndCourse(userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.VideoProgress{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}
