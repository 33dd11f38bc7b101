package service

import (
	"testing"
	"time"
	"video_edu_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	now := time.Now()
	cert := &model.Certificate{
		CertificateNumber:   "CERT-202608-0001",
		VerificationCode:    "ABCDEF0123456789",
		StudentName:         "alice",
		CourseTitle:         "Go 入门",
		CompletionDate:      now,
		TotalCourseDuration: 90,
		IssueDate:           now,
	}

	data, err := NewPDFService().Render(cert)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}
