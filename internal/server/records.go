package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	recorddomain "github.com/smallbiznis/shelterbill/internal/record/domain"
)

func (s *Server) CreateRecord(c *gin.Context) {
	var req recorddomain.CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.IdempotencyKey = strings.TrimSpace(c.GetHeader(idempotencyKeyHeader))

	resp, err := s.recordSvc.CreateRecord(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("action_code", resp.ActionCode)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListRecords(c *gin.Context) {
	var req recorddomain.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recordSvc.ListRecords(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Records,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetRecord(c *gin.Context) {
	resp, err := s.recordSvc.GetRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// UpdateRecord edits non-billing fields. The body is inspected as a map first
// so attempts to change priced fields fail instead of being silently dropped.
func (s *Server) UpdateRecord(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if hasBillingField(raw) {
		AbortWithError(c, recorddomain.ErrBillingFieldsImmutable)
		return
	}

	var req recorddomain.UpdateRecordRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.recordSvc.UpdateNonBillingFields(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRecord(c *gin.Context) {
	if err := s.recordSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
