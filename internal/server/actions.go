package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/shelterbill/internal/catalog/domain"
)

func (s *Server) AddActionVersion(c *gin.Context) {
	var req catalogdomain.AddVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.AddVersion(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("action_code", resp.ActionCode)
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type closeActionRequest struct {
	ValidTo string `json:"valid_to"`
}

func (s *Server) CloseActionVersion(c *gin.Context) {
	var req closeActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CloseOpenVersion(c.Request.Context(), catalogdomain.CloseVersionRequest{
		ActionName: strings.TrimSpace(c.Param("name")),
		ValidTo:    req.ValidTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("action_code", resp.ActionCode)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListActiveActions(c *gin.Context) {
	onDate, err := parseDateOrToday(c.Query("date"), s.clock.Now())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	resp, err := s.catalogSvc.ListActiveOn(c.Request.Context(), onDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListActionVersions(c *gin.Context) {
	resp, err := s.catalogSvc.ListVersions(c.Request.Context(), c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveAction(c *gin.Context) {
	onDate, err := parseDateOrToday(c.Query("date"), s.clock.Now())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "date must be YYYY-MM-DD"))
		return
	}

	resp, err := s.catalogSvc.Resolve(c.Request.Context(), c.Param("name"), onDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("action_code", resp.ActionCode)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetActionVersion(c *gin.Context) {
	resp, err := s.catalogSvc.GetVersion(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveActionVersion(c *gin.Context) {
	if err := s.catalogSvc.RemoveVersion(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
