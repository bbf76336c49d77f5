package controller

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/model"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/service"
	"olimpo_backend/internal/util"
	"olimpo_backend/pkg/logger"
	"olimpo_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExamController serves the participant exam channel. The connecting identity
// must own the participant record and be eligible for the evaluation's stage.
type ExamController struct {
	Monitor      *service.MonitorService
	Results      *service.ResultService
	Ranking      *service.RankingService
	Participants *repository.ParticipantRepository
	Hub          *service.MonitorHub
	Cfg          *config.Config
}

func NewExamController(monitor *service.MonitorService, results *service.ResultService, ranking *service.RankingService, participants *repository.ParticipantRepository, hub *service.MonitorHub, cfg *config.Config) *ExamController {
	return &ExamController{
		Monitor:      monitor,
		Results:      results,
		Ranking:      ranking,
		Participants: participants,
		Hub:          hub,
		Cfg:          cfg,
	}
}

type pageChangePayload struct {
	Page int `json:"page"`
}

type progressPayload struct {
	AnsweredQuestions int `json:"answered_questions"`
	ReviewedQuestions int `json:"reviewed_questions"`
}

type autoSavePayload struct {
	Respuestas     map[string]uint `json:"respuestas"`
	TiempoRestante int             `json:"tiempo_restante"`
}

type completedPayload struct {
	FinalAnswers  map[string]uint `json:"final_answers"`
	FinalReviewed int             `json:"final_reviewed"`
}

// resolveParticipant checks the connecting identity owns a participant record
// eligible for the evaluation.
func (c *ExamController) resolveParticipant(ctx *gin.Context, evaluation *model.Evaluation) (*model.Participant, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	participant, err := c.Participants.FindByUserID(claims.UserID)
	if err != nil {
		util.Forbidden(ctx)
		return nil, false
	}

	eligible, err := c.Ranking.Eligible(participant, evaluation, c.Cfg.Olympiad)
	if err != nil {
		util.LogInternalError(ctx, err)
		return nil, false
	}
	if !eligible {
		util.Error(ctx, 403, util.ErrNotEligible.Error())
		return nil, false
	}
	return participant, true
}

// @Summary Canal de examen del participante (WebSocket)
// @Description Conexión WebSocket de la sesión de examen; inicia o reanuda el intento
// @Tags examen
// @Security BearerAuth
// @Param evaluationId path int true "ID de la evaluación"
// @Router /api/ws/exam/{evaluationId} [get]
func (c *ExamController) HandleWS(ctx *gin.Context) {
	evaluationID, err := strconv.Atoi(ctx.Param("evaluationId"))
	if err != nil {
		util.BadRequest(ctx, "invalid evaluation id")
		return
	}

	evaluation, err := c.Monitor.Evaluations.FindByID(uint(evaluationID))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	participant, ok := c.resolveParticipant(ctx, evaluation)
	if !ok {
		return
	}

	// Resume the open attempt or start a fresh one against the ledger
	// before upgrading, so quota errors surface as HTTP statuses.
	if _, err := c.Results.ActiveAttempt(evaluation.ID, participant.ID); err != nil {
		if !errors.Is(err, util.ErrNoActiveAttempt) {
			util.LogInternalError(ctx, err)
			return
		}
		if _, err := c.Results.StartAttempt(evaluation.ID, participant.ID, time.Now()); err != nil {
			switch {
			case errors.Is(err, util.ErrQuotaExhausted):
				util.Conflict(ctx, err.Error())
			case errors.Is(err, util.ErrEvaluationClosed):
				util.Forbidden(ctx)
			default:
				util.LogInternalError(ctx, err)
			}
			return
		}
	}

	if _, err := c.Monitor.Connect(evaluation.ID, participant.ID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	var actorID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		actorID = claims.UserID
	}

	_, err = c.Hub.Subscribe(
		ctx.Writer, ctx.Request,
		service.ParticipantTopic(evaluation.ID, participant.ID),
		"participant",
		evaluation.ID, participant.ID, actorID,
		c.handleMessage(evaluation.ID, participant.ID),
	)
	if err != nil {
		logger.Log.Error("participant WS upgrade failed", zap.Error(err))
	}
}

func (c *ExamController) handleMessage(evaluationID, participantID uint) func(*service.Client, []byte) {
	return func(client *service.Client, raw []byte) {
		var env service.InboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			client.Reply(service.ErrorMessage("mensaje inválido"))
			return
		}
		monitoring.WSMessageCounter.WithLabelValues(env.Type, "in").Inc()

		switch env.Type {
		case service.MsgHeartbeat:
			if _, err := c.Monitor.Activity(evaluationID, participantID, service.MsgHeartbeat, nil, nil, nil); err != nil {
				c.replyError(client, err)
				return
			}
			client.Reply(service.WSMessage{
				Type: service.MsgHeartbeatAck,
				Data: map[string]interface{}{"timestamp": time.Now().UTC()},
			})

		case service.MsgPageChange:
			var payload pageChangePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				client.Reply(service.ErrorMessage("mensaje inválido"))
				return
			}
			if _, err := c.Monitor.Activity(evaluationID, participantID, service.MsgPageChange, &payload.Page, nil, nil); err != nil {
				c.replyError(client, err)
			}

		case service.MsgAnswerUpdate:
			if _, err := c.Monitor.Activity(evaluationID, participantID, service.MsgAnswerUpdate, nil, nil, nil); err != nil {
				c.replyError(client, err)
			}

		case service.MsgProgressUpdate:
			var payload progressPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				client.Reply(service.ErrorMessage("mensaje inválido"))
				return
			}
			if _, err := c.Monitor.Activity(evaluationID, participantID, service.MsgProgressUpdate, nil, &payload.AnsweredQuestions, &payload.ReviewedQuestions); err != nil {
				c.replyError(client, err)
			}

		case service.MsgAutoSave:
			var payload autoSavePayload
			if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Respuestas == nil {
				client.Reply(service.ErrorMessage("mensaje inválido"))
				return
			}
			_, saved, err := c.Monitor.Autosave(evaluationID, participantID, payload.Respuestas, payload.TiempoRestante)
			if err != nil {
				c.replyError(client, err)
				return
			}
			client.Reply(service.WSMessage{
				Type: service.MsgAutoSaveConfirmed,
				Data: map[string]interface{}{
					"timestamp":            time.Now().UTC(),
					"respuestas_guardadas": saved,
				},
			})

		case service.MsgEvaluationCompleted:
			var payload completedPayload
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &payload); err != nil {
					client.Reply(service.ErrorMessage("mensaje inválido"))
					return
				}
			}
			if _, err := c.Monitor.Complete(evaluationID, participantID, payload.FinalAnswers, model.CompletionParticipantSubmitted, nil, ""); err != nil {
				c.replyError(client, err)
			}

		default:
			client.Reply(service.ErrorMessage("tipo de mensaje desconocido: " + env.Type))
		}
	}
}

// replyError maps service errors to WS error events. An expiry/submit race
// is reported as sesión finalizada rather than an internal failure.
func (c *ExamController) replyError(client *service.Client, err error) {
	switch {
	case errors.Is(err, util.ErrAlreadyCompleted), errors.Is(err, util.ErrSessionFinalizada):
		client.Reply(service.ErrorMessage(util.ErrSessionFinalizada.Error()))
	case errors.Is(err, util.ErrNotFound), errors.Is(err, util.ErrNoActiveAttempt):
		client.Reply(service.ErrorMessage(util.ErrNotFound.Error()))
	default:
		logger.Log.Error("exam channel error", zap.Error(err))
		client.Reply(service.ErrorMessage("error interno"))
	}
}

// @Summary Preguntas del participante
// @Description Subconjunto determinista de preguntas asignado al participante
// @Tags examen
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/questions [get]
func (c *ExamController) GetQuestions(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	evaluation, err := c.Monitor.Evaluations.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	participant, ok := c.resolveParticipant(ctx, evaluation)
	if !ok {
		return
	}

	sample, err := c.Results.SampleForParticipant(evaluation.ID, participant.ID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, sample)
}

// @Summary Elegibilidad del participante
// @Tags examen
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/eligibility [get]
func (c *ExamController) GetEligibility(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	evaluation, err := c.Monitor.Evaluations.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	participant, err := c.Participants.FindByUserID(claims.UserID)
	if err != nil {
		util.Forbidden(ctx)
		return
	}

	eligible, err := c.Ranking.Eligible(participant, evaluation, c.Cfg.Olympiad)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"eligible": eligible, "stage": evaluation.Stage})
}
