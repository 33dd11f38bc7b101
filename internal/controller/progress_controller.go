package controller

import (
	"video_edu_backend/internal/config"
	"video_edu_backend/internal/model"
	"video_edu_backend/internal/service"
	"video_edu_backend/internal/util"
	"video_edu_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressController struct {
	ProgressService    *service.ProgressService
	CertificateService *service.CertificateService
	Cfg                *config.Config
}

func NewProgressController(
	progressService *service.ProgressService,
	certificateService *service.CertificateService,
	cfg *config.Config,
) *ProgressController {
	return &ProgressController{
		ProgressService:    progressService,
		CertificateService: certificateService,
		Cfg:                cfg,
	}
}

type VideoProgressRequest struct {
	CourseID         uint    `json:"courseId" binding:"required"`
	VideoID          string  `json:"videoId" binding:"required"`
	CompletedMinutes float64 `json:"completedMinutes"`
	Percentage       int     `json:"percentage"`
}

type DirectProgressRequest struct {
	CourseID       uint    `json:"courseId" binding:"required"`
	WatchedMinutes float64 `json:"watchedMinutes"`
}

type VideoResetRequest struct {
	CourseID uint   `json:"courseId" binding:"required"`
	VideoID  string `json:"videoId" binding:"required"`
}

// ProgressUpdateResponse 进度写入结果。课程达到完成态时附带资格判定，
// 自动签发开启且成功时附带证书
type ProgressUpdateResponse struct {
	Progress            *model.CourseProgress `json:"progress"`
	Video               *model.VideoProgress  `json:"video,omitempty"`
	CertificateEligible bool                  `json:"certificateEligible"`
	Certificate         *model.Certificate    `json:"certificate,omitempty"`
}

// UpdateVideo godoc
// @Summary 上报视频观看进度
// @Description 写入单个视频的观看数据并重算课程聚合进度
// @Tags 进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VideoProgressRequest true "视频观看数据"
// @Success 200 {object} util.Response{data=ProgressUpdateResponse}
// @Failure 400 {object} util.Response "参数错误或更新模式冲突"
// @Router /api/progress/video [post]
func (c *ProgressController) UpdateVideo(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req VideoProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, video, err := c.ProgressService.ApplyVideoUpdate(
		claims.UserID, req.CourseID, req.VideoID, req.CompletedMinutes, req.Percentage)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	resp := &ProgressUpdateResponse{Progress: progress, Video: video}
	c.afterProgressWrite(ctx, claims.UserID, req.CourseID, resp)
	util.Success(ctx, resp)
}

// UpdateDirect godoc
// @Summary 直接累加观看时长
// @Description 不按视频拆分，直接累加观看分钟数
// @Tags 进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body DirectProgressRequest true "观看分钟数"
// @Success 200 {object} util.Response{data=ProgressUpdateResponse}
// @Failure 400 {object} util.Response "参数错误或更新模式冲突"
// @Failure 404 {object} util.Response "未报名该课程"
// @Router /api/progress/update [post]
func (c *ProgressController) UpdateDirect(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req DirectProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.ApplyDirectIncrement(claims.UserID, req.CourseID, req.WatchedMinutes)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	resp := &ProgressUpdateResponse{Progress: progress}
	c.afterProgressWrite(ctx, claims.UserID, req.CourseID, resp)
	util.Success(ctx, resp)
}

// ResetVideo godoc
// @Summary 重置单个视频进度
// @Description 清零指定视频的观看记录并重算课程聚合
// @Tags 进度
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body VideoResetRequest true "课程和视频标识"
// @Success 200 {object} util.Response{data=ProgressUpdateResponse}
// @Failure 404 {object} util.Response "视频进度不存在"
// @Router /api/progress/video/reset [post]
func (c *ProgressController) ResetVideo(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req VideoResetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	progress, err := c.ProgressService.ResetVideo(claims.UserID, req.CourseID, req.VideoID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, &ProgressUpdateResponse{Progress: progress})
}

// GetProgress godoc
// @Summary 查询课程进度
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Param courseId path int true "课程 ID"
// @Success 200 {object} util.Response{data=model.CourseProgress}
// @Failure 404 {object} util.Response "进度记录不存在"
// @Router /api/progress/{courseId} [get]
func (c *ProgressController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID, err := parseUintParam(ctx, "courseId")
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	progress, err := c.ProgressService.GetProgress(claims.UserID, courseID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// ListReview godoc
// @Summary 全量进度审查
// @Description 管理员查看所有用户的课程进度明细
// @Tags 进度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]repository.ProgressReview}
// @Router /api/admin/progress-review [get]
func (c *ProgressController) ListReview(ctx *gin.Context) {
	reviews, err := c.ProgressService.ListProgressReview()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, reviews)
}

// afterProgressWrite 进度写入后的证书钩子。资格判定和自动签发
// 全部尽力而为：任何失败只记日志，进度写入本身已经成功。
func (c *ProgressController) afterProgressWrite(ctx *gin.Context, userID, courseID uint, resp *ProgressUpdateResponse) {
	if resp.Progress == nil || resp.Progress.Status != model.Completed {
		return
	}

	eligibility, err := c.CertificateService.CheckEligibility(userID, courseID)
	if err != nil {
		logger.Log.Error("eligibility check failed after progress update",
			zap.Uint("userId", userID), zap.Uint("courseId", courseID), zap.Error(err))
		return
	}

	if eligibility.Certificate != nil {
		resp.Certificate = eligibility.Certificate
		return
	}
	if !eligibility.Eligible {
		return
	}

	resp.CertificateEligible = true
	if !c.Cfg.Certificate.AutoIssue {
		return
	}

	result, err := c.CertificateService.Issue(ctx.Request.Context(), userID, courseID)
	if err != nil {
		logger.Log.Error("auto certificate issue failed",
			zap.Uint("userId", userID), zap.Uint("courseId", courseID), zap.Error(err))
		return
	}
	resp.Certificate = result.Certificate
}
