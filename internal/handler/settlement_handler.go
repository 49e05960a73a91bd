package handler

import (
	"context"
	"net/http"

	"github.com/blues/launchpad/internal/logic"
	"github.com/gin-gonic/gin"
)

// SettlementHandler 结算接口，任何人都可以触发
type SettlementHandler struct {
	engine *logic.Engine
}

// NewSettlementHandler 创建结算处理器
func NewSettlementHandler(engine *logic.Engine) *SettlementHandler {
	return &SettlementHandler{engine: engine}
}

type settleFunc func(ctx context.Context, projectID, recordID uint32) error

// 路由 /projects/:id/<kind>/:rid/<op>
func (h *SettlementHandler) settle(op settleFunc, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uint32Param(c, "id")
		if !ok {
			return
		}
		recordID, ok := uint32Param(c, "rid")
		if !ok {
			return
		}
		if err := op(c.Request.Context(), id, recordID); err != nil {
			EngineErrorResponse(c, err)
			return
		}
		SuccessResponse(c, http.StatusOK, message, nil)
	}
}

func (h *SettlementHandler) EvaluationRewardOrSlash() gin.HandlerFunc {
	return h.settle(h.engine.EvaluationRewardOrSlash, "评估奖惩完成")
}

func (h *SettlementHandler) EvaluationUnbond() gin.HandlerFunc {
	return h.settle(h.engine.EvaluationUnbond, "评估抵押已解冻")
}

func (h *SettlementHandler) MintCtForBid() gin.HandlerFunc {
	return h.settle(h.engine.MintCtForBid, "出价代币已发放")
}

func (h *SettlementHandler) PayoutBidFunds() gin.HandlerFunc {
	return h.settle(h.engine.PayoutBidFunds, "出价资金已转给发行方")
}

func (h *SettlementHandler) ReleaseBidFunds() gin.HandlerFunc {
	return h.settle(h.engine.ReleaseBidFunds, "出价资金已退还")
}

func (h *SettlementHandler) BidUnbond() gin.HandlerFunc {
	return h.settle(h.engine.BidUnbond, "出价抵押已解冻")
}

func (h *SettlementHandler) MintCtForContribution() gin.HandlerFunc {
	return h.settle(h.engine.MintCtForContribution, "购买代币已发放")
}

func (h *SettlementHandler) PayoutContributionFunds() gin.HandlerFunc {
	return h.settle(h.engine.PayoutContributionFunds, "购买资金已转给发行方")
}

func (h *SettlementHandler) ReleaseContributionFunds() gin.HandlerFunc {
	return h.settle(h.engine.ReleaseContributionFunds, "购买资金已退还")
}

func (h *SettlementHandler) ContributionUnbond() gin.HandlerFunc {
	return h.settle(h.engine.ContributionUnbond, "购买抵押已解冻")
}
