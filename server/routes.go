package server

import (
	"errors"
	"net/http"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/gin-gonic/gin"
)

// QueryRequest is the body of POST /api/v0/query.
type QueryRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	Query    string `json:"query"     binding:"required"`
}

// RegisterRoutes mounts the API on the router.
func RegisterRoutes(router *gin.Engine, processor QueryProcessor) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v0")
	api.POST("/query", queryHandler(processor))
}

func queryHandler(processor QueryProcessor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondProblem(c, &core.Problem{
				Status: http.StatusBadRequest,
				Title:  "invalid request",
				Detail: err.Error(),
			})
			return
		}

		response, err := processor.Process(c.Request.Context(), req.TenantID, req.Query)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, graph.ErrSchemaUnavailable) {
				status = http.StatusServiceUnavailable
			}
			respondProblem(c, &core.Problem{
				Status: status,
				Title:  "query processing failed",
				Detail: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

func respondProblem(c *gin.Context, problem *core.Problem) {
	problem = core.NormalizeProblem(problem)
	c.JSON(problem.Status, core.BuildProblemBody(problem))
}
