package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/student-management/internal/models"
	"github.com/noah-isme/student-management/pkg/response"
)

type feeService interface {
	ProcessPayment(ctx context.Context, studentID int64, amount decimal.Decimal) error
	ProcessRefund(ctx context.Context, studentID int64, amount decimal.Decimal) error
	GetBalance(ctx context.Context, studentID int64) (decimal.Decimal, error)
	PayFullFee(ctx context.Context, studentID int64) error
	ListTransactions(ctx context.Context, studentID int64) ([]models.FeeTransaction, error)
}

// AmountRequest carries a payment or refund amount. Both JSON numbers and
// decimal strings are accepted.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BalanceResponse reports a student's balance.
type BalanceResponse struct {
	StudentID int64  `json:"student_id"`
	Balance   string `json:"balance"`
}

// FeeHandler exposes balance operations.
type FeeHandler struct {
	fees feeService
}

// NewFeeHandler constructs FeeHandler.
func NewFeeHandler(fees feeService) *FeeHandler {
	return &FeeHandler{fees: fees}
}

// Pay godoc
// @Summary Record a payment
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body AmountRequest true "Amount"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students/{id}/payments [post]
func (h *FeeHandler) Pay(c *gin.Context) {
	h.applyAmount(c, h.fees.ProcessPayment)
}

// Refund godoc
// @Summary Record a refund
// @Tags Fees
// @Accept json
// @Produce json
// @Param id path int true "Student ID"
// @Param payload body AmountRequest true "Amount"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/refunds [post]
func (h *FeeHandler) Refund(c *gin.Context) {
	h.applyAmount(c, h.fees.ProcessRefund)
}

// Balance godoc
// @Summary Current balance
// @Tags Fees
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/balance [get]
func (h *FeeHandler) Balance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	h.respondBalance(c, id)
}

// PayFullFee godoc
// @Summary Settle the outstanding balance
// @Tags Fees
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /students/{id}/pay-full-fee [post]
func (h *FeeHandler) PayFullFee(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.fees.PayFullFee(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	h.respondBalance(c, id)
}

// Transactions godoc
// @Summary Fee history
// @Tags Fees
// @Produce json
// @Param id path int true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/transactions [get]
func (h *FeeHandler) Transactions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.fees.ListTransactions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"total": len(entries)})
}

func (h *FeeHandler) applyAmount(c *gin.Context, apply func(context.Context, int64, decimal.Decimal) error) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AmountRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := apply(c.Request.Context(), id, req.Amount); err != nil {
		response.Error(c, err)
		return
	}
	h.respondBalance(c, id)
}

func (h *FeeHandler) respondBalance(c *gin.Context, id int64) {
	balance, err := h.fees.GetBalance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, BalanceResponse{StudentID: id, Balance: balance.StringFixed(2)})
}
