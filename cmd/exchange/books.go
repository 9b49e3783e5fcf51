package main

import (
	"net/http"

	"bookswap/pkg/catalog"
	"bookswap/pkg/models"
	"bookswap/pkg/store"

	"github.com/gin-gonic/gin"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func listBooks(c *gin.Context) {
	page, size := pageParams(c)
	filter := store.BookFilter{
		Title:    c.Query("title"),
		Author:   c.Query("author"),
		Genre:    c.Query("genre"),
		Location: c.Query("location"),
		Status:   models.BookStatus(c.Query("status")),
	}

	list, err := books.ListBooks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	start := (page - 1) * size
	if start > len(list) {
		start = len(list)
	}
	end := start + size
	if end > len(list) {
		end = len(list)
	}
	c.JSON(http.StatusOK, gin.H{
		"page":          page,
		"pageSize":      size,
		"totalElements": len(list),
		"items":         list[start:end],
	})
}

func getBook(c *gin.Context) {
	book, err := books.GetBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func createBook(c *gin.Context) {
	ownerID, ok := actor(c)
	if !ok {
		return
	}
	var req catalog.BookInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	book, err := books.CreateBook(c.Request.Context(), ownerID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func updateBook(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req catalog.BookInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	book, err := books.UpdateBook(c.Request.Context(), actorID, c.Param("bookId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func setBookStatus(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	book, err := books.SetStatus(c.Request.Context(), actorID, c.Param("bookId"), models.BookStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func deleteBook(c *gin.Context) {
	actorID, ok := actor(c)
	if !ok {
		return
	}
	if err := books.DeleteBook(c.Request.Context(), actorID, c.Param("bookId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
