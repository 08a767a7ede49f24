package ingest

import (
	"errors"
	"net/http"

	"bifurcate/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles HTTP requests for transfers
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler
func NewHandler(service *Service) *Handler {
	return &Handler{svc: service}
}

// RegisterRoutes registers the handler routes under the given group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("", h.IngestTransfer)
	group.POST("/echo", h.EchoTransfer)
	group.GET("/stream", h.StreamTransfers)
	group.GET("/:id", h.GetTransfer)
}

// IngestTransfer handles POST /v1/transfers: the request body is bifurcated
// into the artifact branches and stored.
func (h *Handler) IngestTransfer(c *gin.Context) {
	send := c.MustGet("send").(func(middleware.Response))

	transfer, err := h.svc.Ingest(c.Request.Context(), sourceName(c), c.Request.Body)
	if err != nil {
		send(middleware.Response{
			Code:    http.StatusBadGateway,
			Message: "Ingest failed",
			Error:   err,
		})
		return
	}

	send(middleware.Response{
		Code:    http.StatusCreated,
		Message: "Transfer stored",
		Data:    transfer,
	})
}

// EchoTransfer handles POST /v1/transfers/echo: the body is archived and
// simultaneously streamed back to the caller.
func (h *Handler) EchoTransfer(c *gin.Context) {
	sendStream := c.MustGet("sendStream").(func(middleware.StreamResponse))

	sendStream(h.svc.Echo(c.Request.Context(), sourceName(c), c.Request.Body))
}

// StreamTransfers handles GET /v1/transfers/stream.
func (h *Handler) StreamTransfers(c *gin.Context) {
	sendStream := c.MustGet("sendStream").(func(middleware.StreamResponse))

	sendStream(h.svc.StreamTransfers(c.Request.Context()))
}

// GetTransfer handles GET /v1/transfers/:id.
func (h *Handler) GetTransfer(c *gin.Context) {
	send := c.MustGet("send").(func(middleware.Response))

	transfer, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			send(middleware.Response{
				Code:    http.StatusNotFound,
				Message: "Transfer not found",
				Error:   err,
			})
			return
		}
		send(middleware.Response{
			Code:    http.StatusInternalServerError,
			Message: "Lookup failed",
			Error:   err,
		})
		return
	}

	send(middleware.Response{
		Message: "Transfer found",
		Data:    transfer,
	})
}

func sourceName(c *gin.Context) string {
	if src := c.GetHeader("X-Transfer-Source"); src != "" {
		return src
	}
	return "anonymous"
}
