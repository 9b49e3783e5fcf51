package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"bookswap/pkg/circuitbreaker"
	"bookswap/pkg/models"

	"github.com/gin-gonic/gin"
)

type upstreamResponse struct {
	status int
	body   []byte
}

// callExchange sends one request to the exchange service through the
// breaker. Only transport errors and gateway-class answers (502, 503, 504)
// count as failures. Any answer that arrived is returned so the caller can
// relay it.
func callExchange(ctx context.Context, method, path, rawQuery, userID string, body []byte) (*upstreamResponse, error) {
	url := exchangeServiceURL + path
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	var resp *upstreamResponse
	err := breaker.Execute(func() error {
		var reader io.Reader
		if len(body) > 0 {
			reader = bytes.NewReader(body)
		}
		request, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if reader != nil {
			request.Header.Set("Content-Type", "application/json")
		}
		if userID != "" {
			request.Header.Set(userHeader, userID)
		}

		response, err := httpClient.Do(request)
		if err != nil {
			return err
		}
		defer response.Body.Close()
		data, err := io.ReadAll(response.Body)
		if err != nil {
			return err
		}
		resp = &upstreamResponse{status: response.StatusCode, body: data}
		if unavailable(response.StatusCode) {
			return fmt.Errorf("exchange service answered %d", response.StatusCode)
		}
		return nil
	}, nil)
	stats.BreakerState.Set(float64(breaker.GetState()))

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		stats.UpstreamRequests.WithLabelValues("breaker_open").Inc()
	case resp == nil:
		stats.UpstreamRequests.WithLabelValues("transport_error").Inc()
	case resp.status >= http.StatusInternalServerError:
		stats.UpstreamRequests.WithLabelValues("upstream_error").Inc()
	default:
		stats.UpstreamRequests.WithLabelValues("ok").Inc()
	}

	if resp != nil {
		return resp, nil
	}
	return nil, err
}

// unavailable reports whether the exchange itself could not serve the call.
// A 500 is an answer about one request and says nothing about its health.
func unavailable(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func forward(c *gin.Context, userID string) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_input", "message": "failed to read request body"}})
		return
	}
	resp, err := callExchange(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery, userID, body)
	if err != nil {
		respondUnavailable(c, err)
		return
	}
	relay(c, resp)
}

func forwardPublic(c *gin.Context) {
	forward(c, "")
}

func forwardAsUser(c *gin.Context) {
	forward(c, c.GetString(userKey))
}

func relay(c *gin.Context, resp *upstreamResponse) {
	if len(resp.body) == 0 {
		c.Status(resp.status)
		return
	}
	c.Data(resp.status, "application/json", resp.body)
}

func respondUnavailable(c *gin.Context, err error) {
	message := "exchange service is unavailable"
	if errors.Is(err, circuitbreaker.ErrOpen) {
		message = "exchange service is temporarily unavailable, try again later"
	}
	logger.Warn("exchange call failed", "breaker", breaker.Name(), "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
		"kind":    "unavailable",
		"message": message,
	}})
}

func registerHandler(c *gin.Context) {
	issueToken(c, "/api/v1/users", http.StatusCreated)
}

func loginHandler(c *gin.Context) {
	issueToken(c, "/api/v1/users/authenticate", http.StatusOK)
}

// issueToken forwards a registration or login and, when the exchange accepts
// it, answers with the user and a freshly signed token.
func issueToken(c *gin.Context, path string, success int) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": "invalid_input", "message": "failed to read request body"}})
		return
	}
	resp, err := callExchange(c.Request.Context(), http.MethodPost, path, "", "", body)
	if err != nil {
		respondUnavailable(c, err)
		return
	}
	if resp.status != success {
		relay(c, resp)
		return
	}

	var user models.User
	if err := json.Unmarshal(resp.body, &user); err != nil || user.ID == "" {
		logger.Error("unexpected user payload from exchange", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": gin.H{"kind": "internal", "message": "unexpected response from exchange service"}})
		return
	}
	token, err := tokens.NewToken(user.ID)
	if err != nil {
		logger.Error("failed to sign token", "user", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"kind": "internal", "message": "failed to issue token"}})
		return
	}
	c.JSON(success, gin.H{
		"user":  json.RawMessage(resp.body),
		"token": token,
	})
}
