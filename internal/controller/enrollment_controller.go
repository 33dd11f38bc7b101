package controller

import (
	"video_edu_backend/internal/service"
	"video_edu_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 报名课程
// @Description 为当前用户创建课程进度记录，重复报名幂等返回
// @Tags 报名
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程 ID"
// @Success 200 {object} util.Response{data=model.CourseProgress}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
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

	progress, err := c.EnrollmentService.Enroll(claims.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

type GrantAccessRequest struct {
	Email       string `json:"email" binding:"required,email"`
	CourseTitle string `json:"courseTitle" binding:"required"`
}

// GrantAccess godoc
// @Summary 开通课程权限
// @Description 管理员按邮箱和课程标题为用户开通访问权
// @Tags 报名
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body GrantAccessRequest true "用户邮箱和课程标题"
// @Success 200 {object} util.Response{data=model.CourseProgress}
// @Failure 404 {object} util.Response "用户或课程不存在"
// @Router /api/admin/grant-access [post]
func (c *EnrollmentController) GrantAccess(ctx *gin.Context) {
	var req GrantAccessRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.EnrollmentService.GrantAccess(req.Email, req.CourseTitle)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
