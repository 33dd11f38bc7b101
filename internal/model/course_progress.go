package model

import (
	"math"
	"time"
)

type ProgressStatus string

const (
	NotStarted ProgressStatus = "not_started"
	InProgress ProgressStatus = "in_progress"
	Completed  ProgressStatus = "completed"
)

// StatusFromPercentage 状态只由百分比推导，不允许单独设置
func StatusFromPercentage(percentage int) ProgressStatus {
	switch {
	case percentage <= 0:
		return NotStarted
	case percentage >= 100:
		return Completed
	default:
		return InProgress
	}
}

// CourseProgress 每个用户每门课程一条聚合记录
type CourseProgress struct {
	BaseModel
	UserID           uint           `gorm:"uniqueIndex:idx_course_progress_pair;not null" json:"userId"`
	CourseID         uint           `gorm:"uniqueIndex:idx_course_progress_pair;not null" json:"courseId"`
	CompletedMinutes float64        `gorm:"not null;default:0" json:"completedMinutes"`
	TotalMinutes     float64        `gorm:"not null;default:0" json:"totalMinutes"`
	Percentage       int            `gorm:"not null;default:0" json:"percentage"`
	Status           ProgressStatus `gorm:"size:20;not null;default:not_started" json:"status"`
	LastUpdated      time.Time      `json:"lastUpdated"`

	// 监考元数据，与完成度逻辑无关
	FaceSimilarityScore *float64 `json:"faceSimilarityScore,omitempty"`
	FaceNotFound        bool     `gorm:"default:false" json:"faceNotFound"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// Recalculate 按 completedMinutes/totalMinutes 重新推导百分比和状态。
// 完成分钟数被钳制在 [0, totalMinutes]；百分比只有在学完全部时长时才为 100。
func (p *CourseProgress) Recalculate(now time.Time) {
	if p.CompletedMinutes < 0 {
		p.CompletedMinutes = 0
	}
	if p.TotalMinutes > 0 && p.CompletedMinutes >= p.TotalMinutes {
		p.CompletedMinutes = p.TotalMinutes
		p.Percentage = 100
	} else if p.TotalMinutes > 0 {
		pct := int(math.Round(p.CompletedMinutes / p.TotalMinutes * 100))
		if pct > 99 {
			pct = 99
		}
		p.Percentage = pct
	} else {
		p.Percentage = 0
	}

	p.Status = StatusFromPercentage(p.Percentage)
	p.LastUpdated = now
}
