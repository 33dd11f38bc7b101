package repository

import (
	"time"
	"video_edu_backend/internal/model"

	"gorm.io/gorm"
)

type CertificateRepository struct {
	DB *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{DB: db}
}

// Create 唯一键由数据库兜底：月度序号撞号或同一用户课程的
// 有效证书并发重复，都会以 gorm.ErrDuplicatedKey 返回
func (r *CertificateRepository) Create(cert *model.Certificate) error {
	return r.DB.Create(cert).Error
}

func (r *CertificateRepository) Save(cert *model.Certificate) error {
	return r.DB.Save(cert).Error
}

func (r *CertificateRepository) FindByID(id string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("id = ?", id).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) FindValidByUserAndCourse(userID, courseID uint) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("user_id = ? AND course_id = ? AND is_valid = ?", userID, courseID, true).
		First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) FindByVerificationCode(code string) (*model.Certificate, error) {
	var cert model.Certificate
	err := r.DB.Where("verification_code = ? AND is_valid = ?", code, true).First(&cert).Error
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

func (r *CertificateRepository) ListValidByUser(userID uint) ([]model.Certificate, error) {
	var certs []model.Certificate
	err := r.DB.Where("user_id = ? AND is_valid = ?", userID, true).
		Order("created_at desc").Find(&certs).Error
	return certs, err
}

// CountCreatedInRange 当月已有证书数，用于分配月度序号
func (r *CertificateRepository) CountCreatedInRange(start, end time.Time) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Certificate{}).
		Where("created_at >= ? AND created_at < ?", start, end).
		Count(&count).Error
	return count, err
}

// ClearStaleValidKeys 防御性清理：已失效却还占着唯一键的记录退出唯一键
func (r *CertificateRepository) ClearStaleValidKeys(userID, courseID uint) error {
	return r.DB.Model(&model.Certificate{}).
		Where("user_id = ? AND course_id = ? AND is_valid = ? AND valid_key IS NOT NULL", userID, courseID, false).
		Update("valid_key", nil).Error
}
