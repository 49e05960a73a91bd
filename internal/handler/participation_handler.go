package handler

import (
	"net/http"

	"github.com/blues/launchpad/internal/logic"
	"github.com/gin-gonic/gin"
)

// ParticipationHandler 评估、出价和购买接口
type ParticipationHandler struct {
	engine *logic.Engine
}

// NewParticipationHandler 创建参与处理器
func NewParticipationHandler(engine *logic.Engine) *ParticipationHandler {
	return &ParticipationHandler{engine: engine}
}

// Evaluate 评估项目
func (h *ParticipationHandler) Evaluate(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	evaluationID, err := h.engine.Evaluate(c.Request.Context(), caller.Account, id, req.UsdAmount)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "评估成功", ParticipationIDResponse{IDs: []uint32{evaluationID}})
}

// Bid 拍卖出价
func (h *ParticipationHandler) Bid(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req ParticipateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	bidIDs, err := h.engine.Bid(c.Request.Context(), caller, id, req.CtAmount, req.Multiplier, req.Asset)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "出价成功", ParticipationIDResponse{IDs: bidIDs})
}

// Contribute 社区轮或剩余轮购买
func (h *ParticipationHandler) Contribute(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		return
	}
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	var req ParticipateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	contributionID, err := h.engine.Contribute(c.Request.Context(), caller, id, req.CtAmount, req.Multiplier, req.Asset)
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, "购买成功", ParticipationIDResponse{IDs: []uint32{contributionID}})
}

// GetEvaluations 获取项目评估记录，account 为空时返回全部
func (h *ParticipationHandler) GetEvaluations(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	evaluations, err := h.engine.ListEvaluations(c.Request.Context(), id, c.Query("account"))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取评估记录成功", evaluations)
}

// GetBids 获取项目出价记录
func (h *ParticipationHandler) GetBids(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	bids, err := h.engine.ListBids(c.Request.Context(), id, c.Query("account"))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取出价记录成功", bids)
}

// GetContributions 获取项目购买记录
func (h *ParticipationHandler) GetContributions(c *gin.Context) {
	id, ok := uint32Param(c, "id")
	if !ok {
		return
	}
	contributions, err := h.engine.ListContributions(c.Request.Context(), id, c.Query("account"))
	if err != nil {
		EngineErrorResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "获取购买记录成功", contributions)
}
