package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	auth := JWTAuthMiddleware(h.cfg.JWTSecret, h.logger, false)
	responders := RequireRoles(RoleVolunteer, RoleProfessional)
	dispatchers := RequireRoles(RoleVolunteer, RoleProfessional, RoleAdmin)

	incidents := api.Group("/incidents", auth)
	{
		incidents.POST("", RateLimitMiddleware(h.cfg.RateLimitRPS, h.cfg.RateLimitBurst, h.logger), h.createIncident)
		incidents.GET("/active", dispatchers, h.listActiveIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.POST("/:id/accept", responders, h.acceptMission)
		incidents.PATCH("/:id/vitals", h.updateVitals)
		incidents.POST("/:id/resolve", h.resolveIncident)
		incidents.POST("/:id/cancel", h.cancelIncident)
		incidents.PUT("/:id/severity", RequireRoles(RoleAdmin), h.reclassifyIncident)
		incidents.GET("/:id/matches", RequireRoles(RoleProfessional, RoleAdmin), h.matchIncident)
	}

	// Ранжирование для внешних диспетчерских систем
	api.POST("/responders/rank", APIKeyAuthMiddleware(h.cfg.APIKeys, h.logger), h.rankResponders)

	// Websocket респондеров
	api.GET("/ws", JWTAuthMiddleware(h.cfg.JWTSecret, h.logger, true), responders, h.serveWebsocket)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
