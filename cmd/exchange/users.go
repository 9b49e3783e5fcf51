package main

import (
	"net/http"

	"bookswap/pkg/account"
	"bookswap/pkg/metrics"
	"bookswap/pkg/models"
	"bookswap/pkg/rating"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ratingRequest struct {
	Score         int    `json:"score"`
	Comment       string `json:"comment"`
	TransactionID string `json:"transactionId"`
}

func registerUser(c *gin.Context) {
	var req account.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := accounts.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func authenticateUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func getMyProfile(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	user, err := accounts.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondProfile(c, user, true)
}

func updateMyProfile(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req account.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := accounts.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondProfile(c, user, true)
}

// getUser is the public profile: contact details are left out.
func getUser(c *gin.Context) {
	user, err := accounts.GetProfile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondProfile(c, user, false)
}

func respondProfile(c *gin.Context, user *models.User, private bool) {
	score, err := trustEngine.ComputeTrustScore(c.Request.Context(), user.ID, "")
	if err != nil {
		respondError(c, err)
		return
	}
	stats.TrustScore.Observe(float64(score.TrustScore))

	body := gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"role":       user.Role,
		"ratings":    user.Ratings,
		"trustScore": score,
		"createdAt":  user.CreatedAt,
	}
	if private {
		body["email"] = user.Email
		body["mobile"] = user.Mobile
	}
	c.JSON(http.StatusOK, body)
}

func getTrustScore(c *gin.Context) {
	role := models.Role(c.Query("role"))
	score, err := trustEngine.ComputeTrustScore(c.Request.Context(), c.Param("userId"), role)
	if err != nil {
		respondError(c, err)
		return
	}
	stats.TrustScore.Observe(float64(score.TrustScore))
	c.JSON(http.StatusOK, score)
}

func getOwnerBooks(c *gin.Context) {
	list, err := books.ListByOwner(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func getRatings(c *gin.Context) {
	list, err := ratings.ListRatings(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func rateUser(c *gin.Context) {
	raterID, ok := actor(c)
	if !ok {
		return
	}
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	r, err := ratings.SubmitRating(c.Request.Context(), rating.Submission{
		RaterID:       raterID,
		RateeID:       c.Param("userId"),
		Score:         req.Score,
		Comment:       req.Comment,
		TransactionID: req.TransactionID,
	})
	stats.Ratings.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func checkRating(c *gin.Context) {
	raterID, ok := actor(c)
	if !ok {
		return
	}
	res, err := ratings.CheckRating(c.Request.Context(), raterID, c.Param("userId"), c.Query("transactionId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
