package main

import (
	"net/http"

	"bookswap/pkg/metrics"
	"bookswap/pkg/models"

	"github.com/gin-gonic/gin"
)

type createTransactionRequest struct {
	BookID  string `json:"bookId" binding:"required"`
	Message string `json:"message"`
}

func listTransactions(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	list, err := exchanges.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func createTransaction(c *gin.Context) {
	borrowerID, ok := actor(c)
	if !ok {
		return
	}
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tx, err := exchanges.CreateTransaction(c.Request.Context(), req.BookID, borrowerID, req.Message)
	stats.TransactionsCreated.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func getTransaction(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	tx, err := exchanges.GetTransaction(c.Request.Context(), userID, c.Param("transactionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

func transitionTransaction(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	target := models.TransactionStatus(req.Status)
	tx, err := exchanges.TransitionTransaction(c.Request.Context(), c.Param("transactionId"), actorID, target)
	label := string(target)
	if !target.Valid() {
		label = "unknown"
	}
	stats.Transitions.WithLabelValues(label, metrics.Result(err)).Inc()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
