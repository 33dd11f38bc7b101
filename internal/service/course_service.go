package service

import (
	"errors"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/repository"
	"video_edu_backend/internal/util"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
}

func NewCourseService(courseRepo *repository.CourseRepository) *CourseService {
	return &CourseService{CourseRepo: courseRepo}
}

type CreateCourseInput struct {
	Title        string  `json:"title" binding:"required"`
	Description  string  `json:"description"`
	Author       string  `json:"author"`
	TotalMinutes float64 `json:"totalMinutes" binding:"required,gt=0"`
	Published    bool    `json:"published"`
}

func (s *CourseService) Create(input *CreateCourseInput) (*model.Course, error) {
	_, err := s.CourseRepo.FindByTitle(input.Title)
	if err == nil {
		return nil, util.NewConflictError("course title already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	course := &model.Course{
		Title:        input.Title,
		Description:  input.Description,
		Author:       input.Author,
		TotalMinutes: input.TotalMinutes,
		Published:    input.Published,
	}
	if err := s.CourseRepo.Create(course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Get(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("course not found")
	} else if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListPublished() ([]model.Course, error) {
	return s.CourseRepo.ListPublished()
}
