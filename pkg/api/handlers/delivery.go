// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skylane/skylane/pkg/api/middleware"
	"github.com/skylane/skylane/pkg/api/models"
	"github.com/skylane/skylane/pkg/api/response"
	"github.com/skylane/skylane/pkg/dispatch"
	"github.com/skylane/skylane/pkg/logger"
	"github.com/skylane/skylane/pkg/remote"
)

// DeliveryHandler exposes the delivery workflows over HTTP.
type DeliveryHandler struct {
	service *dispatch.Service
	log     logger.Logger
}

// NewDeliveryHandler creates a delivery handler.
func NewDeliveryHandler(service *dispatch.Service, log logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		service: service,
		log:     log,
	}
}

// Schedule handles POST /api/v1/deliveries.
func (h *DeliveryHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req models.ScheduleDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
			"Invalid request body: "+err.Error(), requestID)
		return
	}

	result, err := h.service.ScheduleDelivery(r.Context(), req.SagaID, dispatch.DeliveryRequest{
		Username: req.Username,
		Weight:   req.Weight,
		Height:   req.Height,
		Width:    req.Width,
	})
	if err != nil {
		h.writeWorkflowError(w, err, requestID)
		return
	}

	response.JSON(w, http.StatusCreated, models.ScheduleDeliveryResponse{
		SagaID:     result.SagaID,
		DeliveryID: result.DeliveryID,
		PackageID:  result.PackageID,
		Transport:  result.Transport,
	})
}

// Get handles GET /api/v1/deliveries/{id}. A plain read through the
// delivery port; no saga runs.
func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	deliveryID := chi.URLParam(r, "id")

	delivery, err := h.service.GetDelivery(r.Context(), deliveryID)
	if err != nil {
		switch {
		case remote.IsNotFound(err):
			response.Error(w, http.StatusNotFound, string(dispatch.CodeDeliveryNotFound),
				"Delivery not found: "+deliveryID, requestID)
		case remote.IsUnavailable(err):
			response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable,
				err.Error(), requestID)
		default:
			response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
				err.Error(), requestID)
		}
		return
	}

	response.JSON(w, http.StatusOK, models.DeliveryFromRemote(delivery))
}

// Pickup handles POST /api/v1/deliveries/{id}/pickup.
func (h *DeliveryHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	deliveryID := chi.URLParam(r, "id")

	var req models.PickupRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
				"Invalid request body: "+err.Error(), requestID)
			return
		}
	}

	confirmation, err := h.service.PickupPackage(r.Context(), req.SagaID, deliveryID)
	if err != nil {
		h.writeWorkflowError(w, err, requestID)
		return
	}

	response.JSON(w, http.StatusOK, models.PickupResponse{
		DeliveryID: confirmation.DeliveryID,
		Status:     string(confirmation.Status),
		Pickup:     confirmation.Pickup,
		Dropoff:    confirmation.Dropoff,
	})
}

// Complete handles POST /api/v1/deliveries/{id}/complete.
func (h *DeliveryHandler) Complete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	deliveryID := chi.URLParam(r, "id")

	var req models.CompleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest,
				"Invalid request body: "+err.Error(), requestID)
			return
		}
	}

	result, err := h.service.CompleteDelivery(r.Context(), req.SagaID, deliveryID)
	if err != nil {
		h.writeWorkflowError(w, err, requestID)
		return
	}

	response.JSON(w, http.StatusOK, models.CompleteResponse{
		SagaID:        result.SagaID,
		DeliveryID:    result.DeliveryID,
		DroneID:       result.DroneID,
		DroneReleased: result.DroneReleased,
	})
}

// writeWorkflowError maps a workflow failure code to an HTTP error response.
func (h *DeliveryHandler) writeWorkflowError(w http.ResponseWriter, err error, requestID string) {
	var wfErr *dispatch.WorkflowError
	if !errors.As(err, &wfErr) {
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer,
			err.Error(), requestID)
		return
	}

	status := statusFromCode(wfErr.Code)
	if h.log != nil && status >= http.StatusInternalServerError {
		h.log.Error("workflow failed",
			"workflow", wfErr.Workflow,
			"code", string(wfErr.Code),
			"step", wfErr.Step,
			"compensated", wfErr.Compensated,
			"request_id", requestID,
		)
	}
	response.Error(w, status, string(wfErr.Code), wfErr.Error(), requestID)
}

func statusFromCode(code dispatch.Code) int {
	switch code {
	case dispatch.CodeAccountNotFound, dispatch.CodeDeliveryNotFound:
		return http.StatusNotFound
	case dispatch.CodeDeliveryRejected, dispatch.CodePackageRejected:
		return http.StatusUnprocessableEntity
	case dispatch.CodeInvalidState:
		return http.StatusConflict
	case dispatch.CodeTransportUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
