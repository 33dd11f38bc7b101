package repository

import (
	"video_edu_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Create(progress *model.CourseProgress) error {
	return r.DB.Create(progress).Error
}

func (r *ProgressRepository) Save(progress *model.CourseProgress) error {
	return r.DB.Save(progress).Error
}

func (r *ProgressRepository) FindByUserAndCourse(userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.CourseProgress, error) {
	var list []model.CourseProgress
	err := r.DB.Where("user_id = ?", userID).Order("last_updated desc").Find(&list).Error
	return list, err
}

// ProgressReview 管理端进度总览的一行，带用户和课程摘要
type ProgressReview struct {
	model.CourseProgress
	Username    string `json:"username"`
	Email       string `json:"email"`
	CourseTitle string `json:"courseTitle"`
}

func (r *ProgressRepository) ListWithDetails() ([]ProgressReview, error) {
	var rows []ProgressReview
	err := r.DB.Model(&model.CourseProgress{}).
		Select("course_progress.*, users.username AS username, users.email AS email, courses.title AS course_title").
		Joins("JOIN users ON users.id = course_progress.user_id").
		Joins("JOIN courses ON courses.id = course_progress.course_id").
		Order("course_progress.last_updated desc").
		Scan(&rows).Error
	return rows, err
}
