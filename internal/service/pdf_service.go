package service

import (
	"bytes"
	"fmt"
	"math"
	"video_edu_backend/internal/model"

	"github.com/jung-kurt/gofpdf"
)

// PDFService 渲染证书 PDF。纯函数式：只读取证书快照，产出字节流，
// 渲染失败只影响当次签发
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

// Render 横版 A4 结业证书
func (s *PDFService) Render(cert *model.Certificate) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()

	// 双层边框
	pdf.SetDrawColor(26, 54, 93)
	pdf.SetLineWidth(1.2)
	pdf.Rect(12, 12, pageW-24, pageH-24, "D")
	pdf.SetDrawColor(45, 55, 72)
	pdf.SetLineWidth(0.4)
	pdf.Rect(15, 15, pageW-30, pageH-30, "D")

	// 标题
	pdf.SetFont("Helvetica", "B", 32)
	pdf.SetTextColor(26, 54, 93)
	pdf.SetXY(20, 35)
	pdf.CellFormat(pageW-40, 14, "CERTIFICATE OF COMPLETION", "", 1, "C", false, 0, "")

	pdf.SetDrawColor(74, 85, 104)
	pdf.SetLineWidth(0.8)
	pdf.Line(pageW/2-35, 52, pageW/2+35, 52)

	// 正文
	pdf.SetFont("Helvetica", "", 18)
	pdf.SetTextColor(45, 55, 72)
	pdf.SetXY(20, 65)
	pdf.CellFormat(pageW-40, 10, "This is to certify that", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 28)
	pdf.SetTextColor(26, 54, 93)
	pdf.SetXY(20, 80)
	pdf.CellFormat(pageW-40, 14, cert.StudentName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 18)
	pdf.SetTextColor(45, 55, 72)
	pdf.SetXY(20, 100)
	pdf.CellFormat(pageW-40, 10, "has successfully completed the course", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetTextColor(26, 54, 93)
	pdf.SetXY(20, 113)
	pdf.CellFormat(pageW-40, 12, fmt.Sprintf("\"%s\"", cert.CourseTitle), "", 1, "C", false, 0, "")

	// 课程时长
	durationHours := math.Round(cert.TotalCourseDuration/60*10) / 10
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetTextColor(74, 85, 104)
	pdf.SetXY(20, 133)
	pdf.CellFormat(pageW-40, 8, fmt.Sprintf("Course Duration: %.1f hours", durationHours), "", 1, "C", false, 0, "")

	// 页脚信息
	pdf.SetFont("Helvetica", "", 14)
	pdf.SetXY(25, 155)
	pdf.CellFormat((pageW-50)/2, 8, fmt.Sprintf("Completion Date: %s", cert.CompletionDate.Format("January 2, 2006")), "", 0, "L", false, 0, "")
	pdf.CellFormat((pageW-50)/2, 8, fmt.Sprintf("Certificate No: %s", cert.CertificateNumber), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(113, 128, 150)
	pdf.SetXY(20, 170)
	pdf.CellFormat(pageW-40, 6, fmt.Sprintf("Verification Code: %s", cert.VerificationCode), "", 1, "C", false, 0, "")

	// 签名栏
	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(45, 55, 72)
	pdf.SetXY(pageW/2-35, 182)
	pdf.CellFormat(70, 6, "___________________________", "", 1, "C", false, 0, "")
	pdf.SetXY(pageW/2-35, 189)
	pdf.CellFormat(70, 6, "Authorized Signature", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
