package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stubProvider 内存存储，可切换成失败模式
type stubProvider struct {
	objects map[string][]byte
	fail    bool
}

func newStubProvider() *stubProvider {
	return &stubProvider{objects: make(map[string][]byte)}
}

func (p *stubProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if p.fail {
		return "", errors.New("upload rejected")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	p.objects[filename] = data
	return p.GetURL(filename), nil
}

func (p *stubProvider) Delete(ctx context.Context, filename string) error {
	delete(p.objects, filename)
	return nil
}

func (p *stubProvider) GetURL(filename string) string {
	return "https://cdn.example.com/" + filename
}

func (e *testEnv) completeCourse(t *testing.T, userID, courseID uint, totalMinutes float64) {
	t.Helper()
	_, err := e.progress.ApplyDirectIncrement(userID, courseID, totalMinutes)
	require.NoError(t, err)

	progress, err := e.progress.GetProgress(userID, courseID)
	require.NoError(t, err)
	require.Equal(t, model.Completed, progress.Status)
	require.Equal(t, 100, progress.Percentage)
}

func expectedNumber(seq int) string {
	now := time.Now()
	return fmt.Sprintf("CERT-%04d%02d-%04d", now.Year(), int(now.Month()), seq)
}

func TestEligibilityFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "资格课程", 60)

	// 无进度记录
	elig, err := env.certificate.CheckEligibility(user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)
	assert.Equal(t, "no progress found", elig.Reason)

	// 未完成
	env.enroll(t, user.ID, course.ID)
	_, err = env.progress.ApplyDirectIncrement(user.ID, course.ID, 30)
	require.NoError(t, err)
	elig, err = env.certificate.CheckEligibility(user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, elig.Eligible)

	// 完成后合格
	env.completeCourse(t, user.ID, course.ID, 30)
	elig, err = env.certificate.CheckEligibility(user.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)
}

func TestIssueCreatesCertificateWithMonthlyNumber(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "alice")
	course := env.createCourse(t, "签发课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Certificate)

	cert := result.Certificate
	assert.False(t, result.Existing)
	assert.True(t, result.Uploaded)
	assert.Equal(t, expectedNumber(1), cert.CertificateNumber)
	assert.Len(t, cert.VerificationCode, 16)
	assert.Equal(t, "alice", cert.StudentName)
	assert.Equal(t, "签发课程", cert.CourseTitle)
	assert.Equal(t, 60.0, cert.TotalCourseDuration)
	assert.True(t, cert.IsValid)
	assert.Equal(t, model.CertificateIssued, cert.State())
	require.NotNil(t, cert.CertificateURL)
	assert.Contains(t, *cert.CertificateURL, cert.CertificateNumber)
}

func TestIssueNumbersIncrementWithinMonth(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	course := env.createCourse(t, "多人课程", 60)

	for i, name := range []string{"u1", "u2", "u3"} {
		user := env.createUser(t, name)
		env.enroll(t, user.ID, course.ID)
		env.completeCourse(t, user.ID, course.ID, 60)

		result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
		require.NoError(t, err)
		assert.Equal(t, expectedNumber(i+1), result.Certificate.CertificateNumber)
	}
}

func TestIssueIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "bob")
	course := env.createCourse(t, "幂等课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	first, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	second, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	assert.True(t, second.Existing)
	assert.Equal(t, first.Certificate.ID, second.Certificate.ID)
	assert.Equal(t, first.Certificate.CertificateNumber, second.Certificate.CertificateNumber)
}

func TestIssueRejectsIncompleteCourse(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carol")
	course := env.createCourse(t, "未完成课程", 60)
	env.enroll(t, user.ID, course.ID)
	_, err := env.progress.ApplyDirectIncrement(user.ID, course.ID, 30)
	require.NoError(t, err)

	_, err = env.certificate.Issue(context.Background(), user.ID, course.ID)
	assert.True(t, util.IsValidation(err))
}

func TestIssueWithoutProgressIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "carol")
	course := env.createCourse(t, "未报名课程", 60)

	_, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	assert.True(t, util.IsNotFound(err))
}

func TestIssueSurvivesUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	provider := newStubProvider()
	provider.fail = true
	env.storage.Provider = provider

	user := env.createUser(t, "dave")
	course := env.createCourse(t, "上传失败课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	assert.False(t, result.Uploaded)
	assert.Equal(t, "upload", result.RetryStep)
	assert.Equal(t, model.CertificatePending, result.Certificate.State())
	assert.Nil(t, result.Certificate.CertificateURL)

	// 存储没修好之前，显式重试以依赖失败上报
	_, err = env.certificate.RetryUpload(context.Background(), result.Certificate.ID, user.ID, false)
	assert.True(t, util.IsDependency(err))

	// 修复存储后可单独重试
	provider.fail = false
	retried, err := env.certificate.RetryUpload(context.Background(), result.Certificate.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, retried.Uploaded)
	assert.Equal(t, model.CertificateIssued, retried.Certificate.State())
}

func TestIssueWithoutStorageStaysPending(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "erin")
	course := env.createCourse(t, "无存储课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, "upload", result.RetryStep)
	assert.Equal(t, "storage not configured", result.StepError)
	assert.Equal(t, model.CertificatePending, result.Certificate.State())
}

func TestRetryUploadIsIdempotentAndGuarded(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "frank")
	course := env.createCourse(t, "重试课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	retried, err := env.certificate.RetryUpload(context.Background(), result.Certificate.ID, user.ID, false)
	require.NoError(t, err)
	assert.True(t, retried.Uploaded)

	_, err = env.certificate.RetryUpload(context.Background(), "no-such-id", user.ID, false)
	assert.True(t, util.IsNotFound(err))
}

func TestRetryUploadRequiresOwnershipOrAdmin(t *testing.T) {
	env := newTestEnv(t)
	provider := newStubProvider()
	provider.fail = true
	env.storage.Provider = provider

	owner := env.createUser(t, "owner")
	intruder := env.createUser(t, "intruder")
	course := env.createCourse(t, "归属课程", 60)
	env.enroll(t, owner.ID, course.ID)
	env.completeCourse(t, owner.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), owner.ID, course.ID)
	require.NoError(t, err)
	certID := result.Certificate.ID
	provider.fail = false

	// 他人即使拿到证书 ID 也按不存在处理
	_, err = env.certificate.RetryUpload(context.Background(), certID, intruder.ID, false)
	assert.True(t, util.IsNotFound(err))

	// 管理员不受归属限制
	retried, err := env.certificate.RetryUpload(context.Background(), certID, intruder.ID, true)
	require.NoError(t, err)
	assert.True(t, retried.Uploaded)
}

func TestRevokeIsTerminalAndAllowsReissue(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "grace")
	course := env.createCourse(t, "吊销课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	certID := result.Certificate.ID

	prior, err := env.certificate.Revoke(context.Background(), certID, "cheating detected")
	require.NoError(t, err)
	assert.True(t, prior.IsValid)

	// 吊销是终态
	_, err = env.certificate.Revoke(context.Background(), certID, "again")
	assert.True(t, util.IsConflict(err))

	// 重试上传同样被拒绝
	_, err = env.certificate.RetryUpload(context.Background(), certID, user.ID, false)
	assert.True(t, util.IsConflict(err))

	// 吊销后可重新签发，拿到新的编号
	reissued, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, reissued.Existing)
	assert.NotEqual(t, certID, reissued.Certificate.ID)
	assert.NotEqual(t, result.Certificate.CertificateNumber, reissued.Certificate.CertificateNumber)
}

func TestRevokeRecordsReasonAndTime(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "heidi")
	course := env.createCourse(t, "吊销记录课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)

	_, err = env.certificate.Revoke(context.Background(), result.Certificate.ID, "issued in error")
	require.NoError(t, err)

	revoked, err := env.certificate.CertRepo.FindByID(result.Certificate.ID)
	require.NoError(t, err)
	assert.False(t, revoked.IsValid)
	assert.Equal(t, model.CertificateRevoked, revoked.State())
	assert.Equal(t, "issued in error", revoked.RevocationReason)
	require.NotNil(t, revoked.RevokedAt)
	assert.Nil(t, revoked.ValidKey)
}

func TestVerifyReturnsSnapshotForValidCertificateOnly(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "ivan")
	course := env.createCourse(t, "校验课程", 90)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 90)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	cert := result.Certificate

	verified, err := env.certificate.Verify(context.Background(), cert.VerificationCode)
	require.NoError(t, err)
	assert.Equal(t, cert.CertificateNumber, verified.CertificateNumber)
	assert.Equal(t, "ivan", verified.StudentName)
	assert.Equal(t, "校验课程", verified.CourseTitle)
	assert.Equal(t, 90.0, verified.TotalCourseDuration)

	// 大小写不敏感
	_, err = env.certificate.Verify(context.Background(), "  "+cert.VerificationCode+"  ")
	require.NoError(t, err)

	// 未知验证码
	_, err = env.certificate.Verify(context.Background(), "DEADBEEFDEADBEEF")
	assert.True(t, util.IsNotFound(err))

	// 吊销后验证失败
	_, err = env.certificate.Revoke(context.Background(), cert.ID, "revoked")
	require.NoError(t, err)
	_, err = env.certificate.Verify(context.Background(), cert.VerificationCode)
	assert.True(t, util.IsNotFound(err))
}

func TestGetUserCertificatesListsValidOnly(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "judy")
	c1 := env.createCourse(t, "课程一", 60)
	c2 := env.createCourse(t, "课程二", 60)

	for _, course := range []*model.Course{c1, c2} {
		env.enroll(t, user.ID, course.ID)
		env.completeCourse(t, user.ID, course.ID, 60)
		_, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
		require.NoError(t, err)
	}

	certs, err := env.certificate.GetUserCertificates(user.ID)
	require.NoError(t, err)
	require.Len(t, certs, 2)

	_, err = env.certificate.Revoke(context.Background(), certs[0].ID, "revoked")
	require.NoError(t, err)

	certs, err = env.certificate.GetUserCertificates(user.ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
}

func TestIssueLoserAdoptsConcurrentWinner(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "laura")
	course := env.createCourse(t, "并发课程", 60)
	env.enroll(t, user.ID, course.ID)
	env.completeCourse(t, user.ID, course.ID, 60)

	// 在本次签发的落库语句之前插入竞争者的证书，
	// 复现两个并发签发里输掉唯一键竞争的一方
	injected := false
	err := env.db.Callback().Create().Before("gorm:create").Register("competing_issue", func(tx *gorm.DB) {
		if injected {
			return
		}
		if _, ok := tx.Statement.Dest.(*model.Certificate); !ok {
			return
		}
		injected = true

		key := uint8(1)
		now := time.Now()
		competing := &model.Certificate{
			UserID:            user.ID,
			CourseID:          course.ID,
			CertificateNumber: expectedNumber(1),
			VerificationCode:  "COMPETINGWINNER1",
			StudentName:       "laura",
			CourseTitle:       "并发课程",
			CompletionDate:    now,
			IsValid:           true,
			ValidKey:          &key,
			IssueDate:         now,
		}
		if createErr := tx.Session(&gorm.Session{NewDB: true}).Create(competing).Error; createErr != nil {
			t.Errorf("competing create failed: %v", createErr)
		}
	})
	require.NoError(t, err)

	result, issueErr := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, issueErr)
	require.True(t, injected)

	// 输掉竞争的一方原样返回赢家的证书，不报错、不另发新号
	assert.True(t, result.Existing)
	assert.Equal(t, expectedNumber(1), result.Certificate.CertificateNumber)
	assert.Equal(t, "COMPETINGWINNER1", result.Certificate.VerificationCode)

	// 该用户课程对最终只有一张有效证书
	certs, err := env.certificate.GetUserCertificates(user.ID)
	require.NoError(t, err)
	assert.Len(t, certs, 1)
	assert.Equal(t, result.Certificate.ID, certs[0].ID)
}

func TestEndToEndCompletionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.storage.Provider = newStubProvider()
	user := env.createUser(t, "kate")
	course := env.createCourse(t, "端到端课程", 100)
	env.enroll(t, user.ID, course.ID)

	_, _, err := env.progress.ApplyVideoUpdate(user.ID, course.ID, "intro", 60, 100)
	require.NoError(t, err)
	aggregate, _, err := env.progress.ApplyVideoUpdate(user.ID, course.ID, "advanced", 40, 100)
	require.NoError(t, err)
	require.Equal(t, model.Completed, aggregate.Status)

	elig, err := env.certificate.CheckEligibility(user.ID, course.ID)
	require.NoError(t, err)
	require.True(t, elig.Eligible)

	result, err := env.certificate.Issue(context.Background(), user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CertificateIssued, result.Certificate.State())
}
