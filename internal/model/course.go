package model

type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Author      string `gorm:"size:255" json:"author"`
	// 课程总时长（分钟），报名时写入进度聚合的 totalMinutes
	TotalMinutes float64 `gorm:"not null;default:0" json:"totalMinutes"`
	Published    bool    `gorm:"default:true" json:"published"`
}

func (Course) TableName() string {
	return "courses"
}
