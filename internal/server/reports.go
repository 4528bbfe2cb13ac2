package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/shelterbill/internal/report/domain"
)

func (s *Server) parseReportRequest(c *gin.Context) (reportdomain.Request, bool) {
	var q reportdomain.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		AbortWithError(c, invalidRequestError())
		return reportdomain.Request{}, false
	}

	req, err := reportdomain.ParseRequest(q, s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return reportdomain.Request{}, false
	}
	return req, true
}

func (s *Server) GenerateReport(c *gin.Context) {
	req, ok := s.parseReportRequest(c)
	if !ok {
		return
	}

	result, err := s.reportSvc.Generate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ExportReport(c *gin.Context) {
	req, ok := s.parseReportRequest(c)
	if !ok {
		return
	}
	c.Set("export_format", string(req.Format))

	out, err := s.reportSvc.Export(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Body)
}
