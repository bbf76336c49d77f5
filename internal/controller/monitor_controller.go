package controller

import (
	"encoding/json"
	"errors"
	"strconv"

	"olimpo_backend/internal/model"
	"olimpo_backend/internal/service"
	"olimpo_backend/internal/util"
	"olimpo_backend/pkg/logger"
	"olimpo_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MonitorController serves the administrator monitoring channel: a WebSocket
// per evaluation plus REST fallbacks for the same snapshot data.
type MonitorController struct {
	Monitor *service.MonitorService
	Hub     *service.MonitorHub
}

func NewMonitorController(monitor *service.MonitorService, hub *service.MonitorHub) *MonitorController {
	return &MonitorController{Monitor: monitor, Hub: hub}
}

type finalizarPayload struct {
	MonitorID uint   `json:"monitor_id"`
	Motivo    string `json:"motivo"`
}

type agregarAlertaPayload struct {
	MonitorID   uint   `json:"monitor_id"`
	Tipo        string `json:"tipo"`
	Severidad   string `json:"severidad"`
	Descripcion string `json:"descripcion"`
}

// @Summary Canal de monitoreo en vivo (WebSocket)
// @Description Conexión WebSocket para el panel de monitoreo de una evaluación
// @Tags monitoreo
// @Security BearerAuth
// @Param evaluationId path int true "ID de la evaluación"
// @Router /api/ws/monitor/{evaluationId} [get]
func (c *MonitorController) HandleWS(ctx *gin.Context) {
	evaluationID, err := strconv.Atoi(ctx.Param("evaluationId"))
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	// Refuse before the upgrade so the dashboard can tell "not found"
	// apart from "no data yet".
	snapshot, err := c.Monitor.Snapshot(uint(evaluationID))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	var actorID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		actorID = claims.UserID
	}

	client, err := c.Hub.Subscribe(
		ctx.Writer, ctx.Request,
		service.AdminTopic(uint(evaluationID)),
		"admin",
		uint(evaluationID), 0, actorID,
		c.handleMessage(uint(evaluationID)),
	)
	if err != nil {
		logger.Log.Error("admin WS upgrade failed", zap.Error(err))
		return
	}

	client.Reply(service.WSMessage{Type: service.MsgInitialData, Data: snapshot})
}

func (c *MonitorController) handleMessage(evaluationID uint) func(*service.Client, []byte) {
	return func(client *service.Client, raw []byte) {
		var env service.InboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			client.Reply(service.ErrorMessage("mensaje inválido"))
			return
		}
		monitoring.WSMessageCounter.WithLabelValues(env.Type, "in").Inc()

		switch env.Type {
		case service.MsgRequestUpdate:
			snapshot, err := c.Monitor.Snapshot(evaluationID)
			if err != nil {
				client.Reply(service.ErrorMessage(err.Error()))
				return
			}
			client.Reply(service.WSMessage{Type: service.MsgMonitoringUpdate, Data: snapshot})

		case service.MsgFinalizarEvaluacion:
			var payload finalizarPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil || payload.MonitorID == 0 {
				client.Reply(service.ErrorMessage("mensaje inválido"))
				return
			}
			actorID := client.ActorID
			if _, err := c.Monitor.FinalizeByMonitor(payload.MonitorID, payload.Motivo, actorID); err != nil {
				client.Reply(service.ErrorMessage(err.Error()))
			}

		case service.MsgAgregarAlerta:
			var payload agregarAlertaPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil || payload.MonitorID == 0 || payload.Tipo == "" {
				client.Reply(service.ErrorMessage("mensaje inválido"))
				return
			}
			severidad := model.AlertSeverity(payload.Severidad)
			if severidad == "" {
				severidad = model.SeverityMedia
			}
			if _, err := c.Monitor.AddAlert(payload.MonitorID, payload.Tipo, payload.Descripcion, severidad); err != nil {
				client.Reply(service.ErrorMessage(err.Error()))
			}

		default:
			// Unknown type: reply with error, keep the connection open.
			client.Reply(service.ErrorMessage("tipo de mensaje desconocido: " + env.Type))
		}
	}
}

// @Summary Snapshot de monitoreo
// @Description Estado actual de todas las sesiones de una evaluación
// @Tags monitoreo
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/monitor [get]
func (c *MonitorController) GetSnapshot(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	snapshot, err := c.Monitor.Snapshot(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, snapshot)
}

// resolveSession turns the route's evaluation/participant pair into the
// underlying session, replying on its own when either id is bad.
func (c *MonitorController) resolveSession(ctx *gin.Context) (*model.MonitorSession, bool) {
	evaluationID, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return nil, false
	}
	participantID, err := strconv.Atoi(ctx.Param("participantId"))
	if err != nil {
		util.BadRequest(ctx, "invalid participant id")
		return nil, false
	}
	session, err := c.Monitor.SessionFor(uint(evaluationID), uint(participantID))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return nil, false
	}
	return session, true
}

// @Summary Suspender sesión
// @Tags monitoreo
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Param participantId path int true "ID del participante"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/sessions/{participantId}/suspend [post]
func (c *MonitorController) SuspendSession(ctx *gin.Context) {
	session, ok := c.resolveSession(ctx)
	if !ok {
		return
	}
	var body struct {
		Motivo string `json:"motivo"`
	}
	_ = ctx.ShouldBindJSON(&body)

	session, err := c.Monitor.Suspend(session.ID, body.Motivo)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, session)
}

// @Summary Reactivar sesión suspendida
// @Tags monitoreo
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Param participantId path int true "ID del participante"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/sessions/{participantId}/reactivate [post]
func (c *MonitorController) ReactivateSession(ctx *gin.Context) {
	session, ok := c.resolveSession(ctx)
	if !ok {
		return
	}
	session, err := c.Monitor.Reactivate(session.ID)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, session)
}
