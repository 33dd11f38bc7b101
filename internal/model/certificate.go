package model

import "time"

type CertificateState string

const (
	// 记录已落库但工件还没有可用的 URL
	CertificatePending CertificateState = "pending"
	CertificateIssued  CertificateState = "issued"
	CertificateRevoked CertificateState = "revoked"
)

// Certificate 结业证书。签发时对学员/课程数据做不可变快照，
// 之后课程被编辑也不影响已签发的证书。
type Certificate struct {
	UUIDBase
	UserID            uint   `gorm:"index;uniqueIndex:idx_valid_certificate_pair;not null" json:"userId"`
	CourseID          uint   `gorm:"index;uniqueIndex:idx_valid_certificate_pair;not null" json:"courseId"`
	CertificateNumber string `gorm:"size:32;uniqueIndex;not null" json:"certificateNumber"`
	VerificationCode  string `gorm:"size:64;uniqueIndex;not null" json:"verificationCode"`

	StudentName         string    `gorm:"size:255;not null" json:"studentName"`
	CourseTitle         string    `gorm:"size:255;not null" json:"courseTitle"`
	CompletionDate      time.Time `gorm:"not null" json:"completionDate"`
	TotalCourseDuration float64   `gorm:"not null;default:0" json:"totalCourseDuration"`
	FinalScore          int       `gorm:"not null;default:100" json:"finalScore"`

	// 工件上传成功前为空
	CertificateURL *string `gorm:"size:512" json:"certificateUrl"`

	IsValid bool `gorm:"not null;default:true" json:"isValid"`
	// MySQL 没有部分唯一索引：有效时为 1 参与 (user,course,valid_key) 唯一键，
	// 吊销后置 NULL，任意多条失效记录互不冲突
	ValidKey *uint8 `gorm:"uniqueIndex:idx_valid_certificate_pair" json:"-"`

	IssueDate        time.Time  `gorm:"not null" json:"issueDate"`
	RevokedAt        *time.Time `json:"revokedAt,omitempty"`
	RevocationReason string     `gorm:"size:255" json:"revocationReason,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}

func (c *Certificate) State() CertificateState {
	if !c.IsValid {
		return CertificateRevoked
	}
	if c.CertificateURL == nil || *c.CertificateURL == "" {
		return CertificatePending
	}
	return CertificateIssued
}

// Invalidate 吊销是终态，记录原因和时间并退出唯一键
func (c *Certificate) Invalidate(reason string, now time.Time) {
	c.IsValid = false
	c.ValidKey = nil
	c.RevokedAt = &now
	c.RevocationReason = reason
}
