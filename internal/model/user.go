package model

import "strings"

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

type User struct {
	BaseModel
	Username  string   `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Email     string   `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string   `gorm:"size:255;not null" json:"-"`
	FirstName string   `gorm:"size:100" json:"firstName"`
	LastName  string   `gorm:"size:100" json:"lastName"`
	Role      UserRole `gorm:"size:20;default:student" json:"role"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName 证书上的学员姓名，优先使用用户名
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
