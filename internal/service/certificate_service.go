package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"video_edu_backend/internal/config"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/repository"
	"video_edu_backend/internal/util"
	"video_edu_backend/pkg/logger"
	"video_edu_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CertificateService 独占证书编号分配和有效性流转。
// 每个用户每门课程最多一张有效证书，由存储层唯一键最终裁决。
type CertificateService struct {
	CertRepo     *repository.CertificateRepository
	ProgressRepo *repository.ProgressRepository
	UserRepo     *repository.UserRepository
	CourseRepo   *repository.CourseRepository
	PDF          *PDFService
	Storage      *StorageService
	Email        *EmailService
	Rdb          *redis.Client
	Cfg          *config.Config
}

func NewCertificateService(
	certRepo *repository.CertificateRepository,
	progressRepo *repository.ProgressRepository,
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	pdf *PDFService,
	storage *StorageService,
	email *EmailService,
	rdb *redis.Client,
	cfg *config.Config,
) *CertificateService {
	return &CertificateService{
		CertRepo:     certRepo,
		ProgressRepo: progressRepo,
		UserRepo:     userRepo,
		CourseRepo:   courseRepo,
		PDF:          pdf,
		Storage:      storage,
		Email:        email,
		Rdb:          rdb,
		Cfg:          cfg,
	}
}

// Eligibility 资格判定结果。已有有效证书时随结果带回该证书供参考
type Eligibility struct {
	Eligible    bool               `json:"eligible"`
	Reason      string             `json:"reason,omitempty"`
	Certificate *model.Certificate `json:"certificate,omitempty"`
}

// IssueResult 签发是落库和工件两步，各自独立上报结果。
// RetryStep 非空表示工件那步失败、可按证书 id 单独重试
type IssueResult struct {
	Certificate *model.Certificate `json:"certificate"`
	Existing    bool               `json:"existing"`
	Uploaded    bool               `json:"uploaded"`
	EmailQueued bool               `json:"emailQueued"`
	RetryStep   string             `json:"retryStep,omitempty"`
	StepError   string             `json:"stepError,omitempty"`
}

// VerificationResult 公开校验结果，不暴露任何内部标识
type VerificationResult struct {
	CertificateNumber   string    `json:"certificateNumber"`
	StudentName         string    `json:"studentName"`
	CourseTitle         string    `json:"courseTitle"`
	CompletionDate      time.Time `json:"completionDate"`
	IssueDate           time.Time `json:"issueDate"`
	TotalCourseDuration float64   `json:"totalCourseDuration"`
}

// CheckEligibility 一律失败关闭：进度缺失、未完成、未满 100% 都不合格。
// 已有有效证书时返回不合格并附上证书本身
func (s *CertificateService) CheckEligibility(userID, courseID uint) (*Eligibility, error) {
	progress, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Eligibility{Eligible: false, Reason: "no progress found"}, nil
	} else if err != nil {
		return nil, err
	}

	if progress.Status != model.Completed {
		return &Eligibility{Eligible: false, Reason: "course not completed"}, nil
	}
	if progress.Percentage < 100 {
		return &Eligibility{Eligible: false, Reason: "course progress less than 100%"}, nil
	}

	existing, err := s.CertRepo.FindValidByUserAndCourse(userID, courseID)
	if err == nil {
		return &Eligibility{Eligible: false, Reason: "valid certificate already exists", Certificate: existing}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return &Eligibility{Eligible: true}, nil
}

// Issue 签发证书。已有有效证书时幂等返回，不重复建档、不重复渲染。
// 证书记录先落库，工件渲染/上传随后进行，失败不回滚记录
func (s *CertificateService) Issue(ctx context.Context, userID, courseID uint) (*IssueResult, error) {
	existing, err := s.CertRepo.FindValidByUserAndCourse(userID, courseID)
	if err == nil {
		return s.existingResult(existing), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	eligibility, err := s.CheckEligibility(userID, courseID)
	if err != nil {
		return nil, err
	}
	if !eligibility.Eligible {
		if eligibility.Certificate != nil {
			return s.existingResult(eligibility.Certificate), nil
		}
		if eligibility.Reason == "no progress found" {
			return nil, util.NewNotFoundError(eligibility.Reason)
		}
		return nil, util.NewValidationError(eligibility.Reason)
	}

	user, err := s.UserRepo.FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("user not found")
	} else if err != nil {
		return nil, err
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("course not found")
	} else if err != nil {
		return nil, err
	}

	// 防御性清理失效却仍占用唯一键的旧记录
	if err := s.CertRepo.ClearStaleValidKeys(userID, courseID); err != nil {
		return nil, err
	}

	now := time.Now()
	number, err := s.nextCertificateNumber(now)
	if err != nil {
		return nil, err
	}

	code, err := generateVerificationCode()
	if err != nil {
		return nil, err
	}

	validKey := uint8(1)
	cert := &model.Certificate{
		UserID:              userID,
		CourseID:            courseID,
		CertificateNumber:   number,
		VerificationCode:    code,
		StudentName:         user.DisplayName(),
		CourseTitle:         course.Title,
		CompletionDate:      now,
		TotalCourseDuration: course.TotalMinutes,
		FinalScore:          100,
		IsValid:             true,
		ValidKey:            &validKey,
		IssueDate:           now,
	}

	if err := s.CertRepo.Create(cert); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发竞争输掉时改读赢家的证书返回；
			// 查不到赢家说明撞的是月度序号，显式报冲突而不是换号重试
			winner, findErr := s.CertRepo.FindValidByUserAndCourse(userID, courseID)
			if findErr == nil {
				return s.existingResult(winner), nil
			}
			return nil, util.NewConflictError("certificate number conflict, please retry")
		}
		return nil, err
	}

	monitoring.CertificatesIssued.Inc()
	logger.Log.Info("certificate created",
		zap.String("number", cert.CertificateNumber),
		zap.Uint("userId", userID), zap.Uint("courseId", courseID))

	result := &IssueResult{Certificate: cert}
	s.renderAndUpload(ctx, cert, result)

	if s.Email.IsConfigured() {
		s.sendCompletionEmail(user, cert)
		result.EmailQueued = true
	}

	return result, nil
}

// RetryUpload 对已落库但工件缺失的证书单独重试渲染和上传。
// 只有证书持有人和管理员可以触发，其他人一律按不存在处理
func (s *CertificateService) RetryUpload(ctx context.Context, certificateID string, requesterID uint, isAdmin bool) (*IssueResult, error) {
	cert, err := s.CertRepo.FindByID(certificateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("certificate not found")
	} else if err != nil {
		return nil, err
	}

	if !isAdmin && cert.UserID != requesterID {
		return nil, util.NewNotFoundError("certificate not found")
	}

	if !cert.IsValid {
		return nil, util.NewConflictError("certificate has been revoked")
	}

	result := &IssueResult{Certificate: cert, Existing: true}
	if cert.CertificateURL != nil && *cert.CertificateURL != "" {
		result.Uploaded = true
		return result, nil
	}

	s.renderAndUpload(ctx, cert, result)
	if !result.Uploaded {
		return nil, util.NewDependencyError(result.StepError)
	}
	return result, nil
}

// Revoke 吊销证书并返回吊销前的状态用于通知。吊销是终态
func (s *CertificateService) Revoke(ctx context.Context, certificateID, reason string) (*model.Certificate, error) {
	cert, err := s.CertRepo.FindByID(certificateID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("certificate not found")
	} else if err != nil {
		return nil, err
	}

	if !cert.IsValid {
		return nil, util.NewConflictError("certificate is already revoked")
	}

	if reason == "" {
		reason = "Revoked by admin"
	}

	prior := *cert
	cert.Invalidate(reason, time.Now())
	if err := s.CertRepo.Save(cert); err != nil {
		return nil, err
	}

	// 记录失效才是权威状态，工件删除尽力而为
	if err := s.Storage.Delete(ctx, artifactKey(cert)); err != nil {
		logger.Log.Warn("certificate artifact delete failed",
			zap.String("number", cert.CertificateNumber), zap.Error(err))
	}

	if s.Rdb != nil {
		s.Rdb.Del(ctx, verifyCacheKey(cert.VerificationCode))
	}

	logger.Log.Info("certificate revoked",
		zap.String("number", cert.CertificateNumber), zap.String("reason", reason))

	return &prior, nil
}

// Verify 公开校验入口，只认有效证书，结果短期缓存
func (s *CertificateService) Verify(ctx context.Context, code string) (*VerificationResult, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, util.NewValidationError("verification code is required")
	}

	if s.Rdb != nil {
		cached, err := s.Rdb.Get(ctx, verifyCacheKey(code)).Result()
		if err == nil {
			var result VerificationResult
			if json.Unmarshal([]byte(cached), &result) == nil {
				return &result, nil
			}
		}
	}

	cert, err := s.CertRepo.FindByVerificationCode(code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewNotFoundError("certificate not found or invalid")
	} else if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		CertificateNumber:   cert.CertificateNumber,
		StudentName:         cert.StudentName,
		CourseTitle:         cert.CourseTitle,
		CompletionDate:      cert.CompletionDate,
		IssueDate:           cert.IssueDate,
		TotalCourseDuration: cert.TotalCourseDuration,
	}

	if s.Rdb != nil {
		if payload, err := json.Marshal(result); err == nil {
			ttl := time.Duration(s.Cfg.Certificate.VerifyCacheMinutes) * time.Minute
			s.Rdb.Set(ctx, verifyCacheKey(code), payload, ttl)
		}
	}

	return result, nil
}

func (s *CertificateService) GetUserCertificates(userID uint) ([]model.Certificate, error) {
	return s.CertRepo.ListValidByUser(userID)
}

// nextCertificateNumber 月度序号：当月计数 +1，补零到 4 位。
// 这里只是分配，撞号由唯一键裁决
func (s *CertificateService) nextCertificateNumber(now time.Time) (string, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	count, err := s.CertRepo.CountCreatedInRange(monthStart, nextMonth)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("CERT-%04d%02d-%04d", now.Year(), int(now.Month()), count+1), nil
}

func (s *CertificateService) existingResult(cert *model.Certificate) *IssueResult {
	return &IssueResult{
		Certificate: cert,
		Existing:    true,
		Uploaded:    cert.CertificateURL != nil && *cert.CertificateURL != "",
	}
}

// renderAndUpload 工件两步：渲染（CPU 密集）和上传（IO）。
// 任一步失败证书保持 pending，结果标记可重试的步骤
func (s *CertificateService) renderAndUpload(ctx context.Context, cert *model.Certificate, result *IssueResult) {
	buffer, err := s.PDF.Render(cert)
	if err != nil {
		monitoring.CertificateUploadFailures.Inc()
		logger.Log.Error("certificate render failed",
			zap.String("number", cert.CertificateNumber), zap.Error(err))
		result.RetryStep = "upload"
		result.StepError = "certificate rendering failed"
		return
	}

	url, err := s.Storage.UploadBuffer(ctx, artifactKey(cert), buffer, "application/pdf")
	if err != nil {
		monitoring.CertificateUploadFailures.Inc()
		logger.Log.Error("certificate upload failed",
			zap.String("number", cert.CertificateNumber), zap.Error(err))
		result.RetryStep = "upload"
		if errors.Is(err, ErrStorageNotConfigured) {
			result.StepError = "storage not configured"
		} else {
			result.StepError = "certificate upload failed"
		}
		return
	}

	cert.CertificateURL = &url
	if err := s.CertRepo.Save(cert); err != nil {
		logger.Log.Error("certificate url save failed",
			zap.String("number", cert.CertificateNumber), zap.Error(err))
		result.RetryStep = "upload"
		result.StepError = "certificate update failed"
		return
	}

	result.Uploaded = true
}

func (s *CertificateService) sendCompletionEmail(user *model.User, cert *model.Certificate) {
	url := ""
	if cert.CertificateURL != nil {
		url = *cert.CertificateURL
	}
	body := fmt.Sprintf(
		"Congratulations! Your certificate for \"%s\" is ready.\n\n"+
			"Certificate Number: %s\nCompletion Date: %s\nVerification Code: %s\n\n"+
			"Download your certificate: %s\n",
		cert.CourseTitle,
		cert.CertificateNumber,
		cert.CompletionDate.Format("2006-01-02"),
		cert.VerificationCode,
		url,
	)
	s.Email.SendAsync(user.Email, "Your course certificate is ready", body)
}

func artifactKey(cert *model.Certificate) string {
	return fmt.Sprintf("certificates/certificate-%s.pdf", cert.CertificateNumber)
}

func verifyCacheKey(code string) string {
	return "certificate:verify:" + code
}

// generateVerificationCode 随机校验码，对外证明证书真伪
func generateVerificationCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
