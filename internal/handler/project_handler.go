package handler

import (
	"context"
	"net/http"

	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/model"
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目生命周期接口
type ProjectHandler struct {
	engine *logic.Engine
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(engine *logic.Engine) *ProjectHandler {
	return &ProjectHandler{engine: engine}
}

// CreateProject 创建项目
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	var metadata model.ProjectMetadata
	if err := c.ShouldBindJSON(&metadata); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.engine.CreateProject(c.Request.Context(), caller.Account, metadata)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "项目创建成功", ProjectIDResponse{ProjectID: id})
}

// EditProject 修改项目元数据
func (h *ProjectHandler) EditProject(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var metadata model.ProjectMetadata
	if err := c.ShouldBindJSON(&metadata); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.EditProject(c.Request.Context(), caller.Account, id, metadata); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "项目修改成功", nil)
}

// RemoveProject 删除项目
func (h *ProjectHandler) RemoveProject(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	if err := h.engine.RemoveProject(c.Request.Context(), caller.Account, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "项目删除成功", nil)
}

// GetProjects 获取项目列表，可按状态过滤
func (h *ProjectHandler) GetProjects(c *gin.Context) {
	var statuses []model.ProjectStatus
	for _, status := range c.QueryArray("status") {
		statuses = append(statuses, model.ProjectStatus(status))
	}

	projects, err := h.engine.ListProjects(c.Request.Context(), statuses...)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取项目列表成功", projects)
}

// GetProject 获取单个项目详情
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	project, err := h.engine.GetProject(c.Request.Context(), id)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取项目详情成功", project)
}

// GetPendingUpdate 获取项目下一次自动转换
func (h *ProjectHandler) GetPendingUpdate(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	block, update, err := h.engine.PendingUpdate(id)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取自动转换成功", PendingUpdateResponse{Block: block, Update: update})
}

// StartEvaluation 开启评估轮
func (h *ProjectHandler) StartEvaluation(c *gin.Context) {
	h.issuerAction(c, "评估轮已开启", h.engine.StartEvaluation)
}

// StartEnglishAuction 提前开启英式拍卖
func (h *ProjectHandler) StartEnglishAuction(c *gin.Context) {
	h.issuerAction(c, "英式拍卖已开启", h.engine.StartEnglishAuction)
}

// DecideProjectOutcome 发行方决定是否接受募资结果
func (h *ProjectHandler) DecideProjectOutcome(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.DecideProjectOutcome(c.Request.Context(), caller.Account, id, req.Decision); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "决定已提交", nil)
}

// StartSettlement 手动开始结算
func (h *ProjectHandler) StartSettlement(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	if err := h.engine.StartSettlement(c.Request.Context(), id); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "结算已开始", nil)
}

// GetBalance 查询账户余额，reason 为空时返回可用余额
func (h *ProjectHandler) GetBalance(c *gin.Context) {
	asset, account, reason := c.Param("asset"), c.Param("account"), c.Query("reason")

	amount, err := h.engine.Balance(c.Request.Context(), asset, account, reason)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取余额成功", BalanceResponse{Asset: asset, Account: account, Reason: reason, Amount: amount})
}

func (h *ProjectHandler) issuerAction(c *gin.Context, message string, action func(ctx context.Context, caller string, projectID uint32) error) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	if err := action(c.Request.Context(), caller.Account, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, nil)
}
