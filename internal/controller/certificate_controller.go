package controller

import (
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/service"
	"video_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// Issue godoc
// @Summary 签发证书
// @Description 为已完成课程的当前用户签发结业证书，已有有效证书时幂等返回
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程 ID"
// @Success 200 {object} util.Response{data=service.IssueResult}
// @Failure 400 {object} util.Response "课程未完成"
// @Failure 404 {object} util.Response "无进度记录"
// @Failure 409 {object} util.Response "证书编号冲突"
// @Router /api/courses/{id}/certificate [post]
func (c *CertificateController) Issue(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, err := parseUintParam(ctx, "id")
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	result, err := c.CertificateService.Issue(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if result.Existing {
		util.Success(ctx, result)
		return
	}
	util.Created(ctx, result)
}

// List godoc
// @Summary 我的证书
// @Description 返回当前用户全部有效证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.CertificateService.GetUserCertificates(claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// RetryUpload godoc
// @Summary 重试证书工件上传
// @Description 对已落库但 PDF 缺失的证书重新渲染并上传，仅限持有人或管理员
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param id path string true "证书 ID"
// @Success 200 {object} util.Response{data=service.IssueResult}
// @Failure 404 {object} util.Response "证书不存在"
// @Failure 409 {object} util.Response "证书已吊销"
// @Failure 502 {object} util.Response "渲染或上传再次失败"
// @Router /api/certificates/{id}/retry-upload [post]
func (c *CertificateController) RetryUpload(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	certID := ctx.Param("id")
	if certID == "" {
		util.BadRequest(ctx, "certificate id is required")
		return
	}

	result, err := c.CertificateService.RetryUpload(
		ctx.Request.Context(), certID, claims.UserID, claims.Role == model.Admin)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

type RevokeRequest struct {
	Reason string `json:"reason"`
}

// Revoke godoc
// @Summary 吊销证书
// @Description 管理员吊销证书，吊销后可为同一课程重新签发
// @Tags 证书
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "证书 ID"
// @Param body body RevokeRequest false "吊销原因"
// @Success 200 {object} util.Response{data=model.Certificate} "吊销前的证书状态"
// @Failure 404 {object} util.Response "证书不存在"
// @Failure 409 {object} util.Response "证书已吊销"
// @Router /api/admin/certificates/{id}/revoke [post]
func (c *CertificateController) Revoke(ctx *gin.Context) {
	certID := ctx.Param("id")
	if certID == "" {
		util.BadRequest(ctx, "certificate id is required")
		return
	}

	var req RevokeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}

	prior, err := c.CertificateService.Revoke(ctx.Request.Context(), certID, req.Reason)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, prior)
}

// Verify godoc
// @Summary 证书真伪校验
// @Description 公开接口，按验证码查询有效证书的快照信息
// @Tags 证书
// @Produce json
// @Param code path string true "验证码"
// @Success 200 {object} util.Response{data=service.VerificationResult}
// @Failure 404 {object} util.Response "证书不存在或已失效"
// @Router /api/certificates/verify/{code} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	code := ctx.Param("code")

	result, err := c.CertificateService.Verify(ctx.Request.Context(), code)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
