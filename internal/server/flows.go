package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flumeworks/flume/internal/engine"
	"github.com/flumeworks/flume/pkg/api"
)

// ErrInvalidRequestBody is returned when a request payload fails to bind
var ErrInvalidRequestBody = errors.New("invalid request body")

func (s *Server) createFlow(c *gin.Context) {
	var req api.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrInvalidRequestBody, err),
			Status: http.StatusUnprocessableEntity,
		})
		return
	}

	flow := req.FlowData.Flow
	if err := s.engine.RegisterFlow(flow); err != nil {
		flowRegistrationError(c, err)
		return
	}

	c.JSON(http.StatusCreated, api.FlowRegisteredResponse{
		Message: fmt.Sprintf("Flow %s created successfully", flow.ID),
		FlowID:  flow.ID,
	})
}

func flowRegistrationError(c *gin.Context, err error) {
	if errors.Is(err, engine.ErrFlowExists) {
		c.JSON(http.StatusConflict, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusConflict,
		})
		return
	}

	c.JSON(http.StatusBadRequest, api.ErrorResponse{
		Error:  fmt.Sprintf("Flow validation error: %v", err),
		Status: http.StatusBadRequest,
	})
}

func (s *Server) listFlows(c *gin.Context) {
	flows := s.engine.Flows()
	c.JSON(http.StatusOK, api.FlowsListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func (s *Server) getFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	flow, err := s.engine.Flow(flowID)
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusNotFound,
		})
		return
	}

	c.JSON(http.StatusOK, flow)
}
