package main

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/mxxx222/converto-receipts/pkg/parse"
	"github.com/mxxx222/converto-receipts/pkg/receipt"
	"github.com/mxxx222/converto-receipts/pkg/store"
	"github.com/mxxx222/converto-receipts/pkg/vat"
)

func setupRoutes(r *gin.Engine) {
	api := r.Group("")
	if cfg.AuthSecret != "" {
		api.Use(authMiddleware([]byte(cfg.AuthSecret)))
	}
	api.POST("/receipts", uploadReceiptHandler)
	api.GET("/receipts", listReceiptsHandler)
	api.GET("/receipts/:id", getReceiptHandler)
	api.POST("/receipts/:id/process", processReceiptHandler)
	api.POST("/receipts/process-all", processAllHandler)
	api.DELETE("/receipts/:id", deleteReceiptHandler)
	api.POST("/receipts/:id/restore", restoreReceiptHandler)
	api.POST("/receipts/parse", parseTextHandler)
	api.POST("/vat/liability", vatLiabilityHandler)
}

// uploadReceiptHandler accepts a multipart receipt file, dedups it by
// content hash and queues it for processing.
func uploadReceiptHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > cfg.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	ct := file.Header.Get("Content-Type")
	if ct == "" {
		ct = extMime[filepath.Ext(file.Filename)]
	}
	res, err := receipts.Add(c.Request.Context(), store.Upload{
		Name:     file.Filename,
		MimeType: ct,
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrUnsupportedType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrInvalidUpload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		}
		return
	}
	c.JSON(http.StatusOK, res)
}

func listReceiptsHandler(c *gin.Context) {
	items, err := receipts.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func getReceiptHandler(c *gin.Context) {
	meta, err := receipts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// processReceiptHandler runs one receipt through the OCR pipeline.
func processReceiptHandler(c *gin.Context) {
	out, err := proc.ProcessOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		// Both providers failed; the receipt stays queued for retry.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"provider":     out.Provider,
		"fallbackUsed": out.FallbackUsed,
		"parsed":       out.Parsed,
		"status":       receipt.StatusReviewed,
		"quality":      out.Quality,
	})
}

func processAllHandler(c *gin.Context) {
	results, err := proc.ProcessAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func deleteReceiptHandler(c *gin.Context) {
	meta, err := receipts.Remove(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

func restoreReceiptHandler(c *gin.Context) {
	meta, err := receipts.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "restore failed"})
		return
	}
	c.JSON(http.StatusOK, meta)
}

// parseTextHandler parses pre-extracted text without touching the store.
func parseTextHandler(c *gin.Context) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "text missing or not a string"})
		return
	}
	parsed, err := parse.Parse(*req.Text)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "parsed": parsed})
}

// vatLiabilityHandler aggregates submitted invoice items, optionally joined
// by all reviewed receipts mapped in as purchases.
func vatLiabilityHandler(c *gin.Context) {
	var req struct {
		Items           []vat.InvoiceItem `json:"items"`
		IncludeReceipts bool              `json:"includeReceipts"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := req.Items
	if req.IncludeReceipts {
		all, err := receipts.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		for _, m := range all {
			if m.Status == receipt.StatusReviewed && m.Parsed != nil {
				items = append(items, engine.ReceiptToInvoiceItems(*m.Parsed, vat.KindPurchase)...)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"liability":  engine.Liability(items),
		"mismatches": engine.DetectMismatches(items),
	})
}
