package handler

import (
	"net/http"

	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/gin-gonic/gin"
)

// MigrationHandler 跨链迁移接口
type MigrationHandler struct {
	engine *logic.Engine
}

// NewMigrationHandler 创建迁移处理器
func NewMigrationHandler(engine *logic.Engine) *MigrationHandler {
	return &MigrationHandler{engine: engine}
}

// SetDestination 设置目标链
func (h *MigrationHandler) SetDestination(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req DestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.SetDestinationChainID(c.Request.Context(), caller.Account, id, req.ParaID); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "目标链已设置", nil)
}

// OpenChannel 系统账户报告通道已打开
func (h *MigrationHandler) OpenChannel(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.HandleChannelOpen(c.Request.Context(), caller.Account, id, logic.ChannelDirection(req.Direction)); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "通道状态已更新", nil)
}

// StartReadinessCheck 重新发起迁移检查
func (h *MigrationHandler) StartReadinessCheck(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	if err := h.engine.StartMigrationReadinessCheck(c.Request.Context(), caller.Account, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "迁移检查已发送", nil)
}

// StartMigration 开始迁移
func (h *MigrationHandler) StartMigration(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}

	if err := h.engine.StartMigration(c.Request.Context(), caller.Account, id); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "迁移已开始", nil)
}

// MigrateParticipant 发送一个参与者的迁移消息
func (h *MigrationHandler) MigrateParticipant(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	participant := c.Param("account")

	batches, err := h.engine.MigrateOneParticipant(c.Request.Context(), id, participant)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "迁移消息已发送", MigrateResponse{Participant: participant, Batches: batches})
}

// HandleResponse 接收目标链的查询响应，用于没有消息队列的部署
func (h *MigrationHandler) HandleResponse(c *gin.Context) {
	var response xcm.Response
	if err := c.ShouldBindJSON(&response); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engine.HandleResponse(c.Request.Context(), response); err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "响应已处理", nil)
}
