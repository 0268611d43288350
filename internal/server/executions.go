package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

func (s *Server) executeFlow(c *gin.Context) {
	var req api.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidRequestBody, err),
			Status: http.StatusUnprocessableEntity,
		})
		return
	}

	st, err := s.engine.Execute(c.Request.Context(), req.FlowID, req.Context)
	if err != nil {
		executionError(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

func executionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrFlowNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})

	case engine.IsValidationError(err):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("Context validation error: %v", err),
			Status: http.StatusBadRequest,
		})

	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusInternalServerError,
		})
	}
}

func (s *Server) listExecutions(c *gin.Context) {
	execs := s.engine.QueryExecutions(engine.ExecutionFilter{
		FlowID: api.FlowID(c.Query("flow_id")),
		Status: api.ExecutionStatus(c.Query("status")),
		Path:   c.Query("path"),
		Value:  c.Query("value"),
	})

	c.JSON(http.StatusOK, api.ExecutionsListResponse{
		Executions: execs,
		Count:      len(execs),
	})
}

func (s *Server) getExecution(c *gin.Context) {
	executionID := api.ExecutionID(c.Param("executionID"))

	st, err := s.engine.Execution(executionID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, st)
}
