package controller

import (
	"errors"
	"strconv"

	"olimpo_backend/internal/config"
	"olimpo_backend/internal/repository"
	"olimpo_backend/internal/service"
	"olimpo_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// EvaluationController exposes the evaluation catalogue, rankings,
// advancement results and the per-participant attempt quota.
type EvaluationController struct {
	Evaluations *repository.EvaluationRepository
	Ranking     *service.RankingService
	Ledger      *service.LedgerService
	Cfg         *config.Config
}

func NewEvaluationController(evaluations *repository.EvaluationRepository, ranking *service.RankingService, ledger *service.LedgerService, cfg *config.Config) *EvaluationController {
	return &EvaluationController{
		Evaluations: evaluations,
		Ranking:     ranking,
		Ledger:      ledger,
		Cfg:         cfg,
	}
}

// @Summary Listar evaluaciones
// @Description Evaluaciones del año activo, opcionalmente filtradas por etapa
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param stage query int false "Etapa (1-3)"
// @Param year query int false "Año; por defecto el año activo"
// @Success 200 {object} util.Response
// @Router /api/evaluations [get]
func (c *EvaluationController) List(ctx *gin.Context) {
	year := c.Cfg.Olympiad.ActiveYear
	if raw := ctx.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			util.BadRequest(ctx, "invalid year")
			return
		}
		year = parsed
	}

	if raw := ctx.Query("stage"); raw != "" {
		stage, err := strconv.Atoi(raw)
		if err != nil || stage < 1 || stage > 3 {
			util.BadRequest(ctx, "invalid stage")
			return
		}
		evaluations, err := c.Evaluations.ListByStageAndYear(stage, year)
		if err != nil {
			util.LogInternalError(ctx, err)
			return
		}
		util.Success(ctx, evaluations)
		return
	}

	evaluations, err := c.Evaluations.ListByYear(year)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, evaluations)
}

// @Summary Detalle de una evaluación
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/evaluations/{id} [get]
func (c *EvaluationController) Get(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	evaluation, err := c.Evaluations.FindByIDWithAssignments(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, evaluation)
}

// @Summary Ranking de una evaluación
// @Description Mejores intentos ordenados por puntaje, tiempo y antigüedad
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/ranking [get]
func (c *EvaluationController) GetRanking(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	entries, err := c.Ranking.RankEntries(uint(id))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// @Summary Clasificados de una etapa
// @Description Participantes que avanzan desde la etapa indicada del año activo
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param stage path int true "Etapa (1-2)"
// @Success 200 {object} util.Response
// @Router /api/stages/{stage}/advancement [get]
func (c *EvaluationController) GetAdvancement(ctx *gin.Context) {
	stage, err := strconv.Atoi(ctx.Param("stage"))
	if err != nil || stage < 1 || stage > 2 {
		util.BadRequest(ctx, "invalid stage")
		return
	}
	advancers, err := c.Ranking.AdvancersFromStage(stage, c.Cfg.Olympiad.ActiveYear, c.Cfg.Olympiad)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"stage": stage, "participant_ids": advancers})
}

// @Summary Verificación de consistencia de avances
// @Description Compara los avances calculados contra los registros manuales
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/consistency [get]
func (c *EvaluationController) GetConsistency(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	report, err := c.Ranking.CheckOverrides(uint(id), c.Cfg.Olympiad)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

type setQuotaRequest struct {
	Allowed int `json:"allowed" binding:"min=0"`
}

// @Summary Ajustar cupo de intentos
// @Description Fija los intentos permitidos de un participante; nunca por debajo de los usados
// @Tags evaluaciones
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Param participantId path int true "ID del participante"
// @Param body body setQuotaRequest true "Intentos permitidos"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/evaluations/{id}/participants/{participantId}/quota [put]
func (c *EvaluationController) SetQuota(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	participantID, err := strconv.Atoi(ctx.Param("participantId"))
	if err != nil {
		util.BadRequest(ctx, "invalid participant id")
		return
	}

	var req setQuotaRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var actorID uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		actorID = claims.UserID
	}

	quota, err := c.Ledger.SetAllowed(uint(id), uint(participantID), req.Allowed, actorID)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrQuotaBelowUsed):
			util.Conflict(ctx, err.Error())
		case errors.Is(err, util.ErrNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, quota)
}

// @Summary Cupo de intentos de un participante
// @Tags evaluaciones
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID de la evaluación"
// @Param participantId path int true "ID del participante"
// @Success 200 {object} util.Response
// @Router /api/evaluations/{id}/participants/{participantId}/quota [get]
func (c *EvaluationController) GetQuota(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}
	participantID, err := strconv.Atoi(ctx.Param("participantId"))
	if err != nil {
		util.BadRequest(ctx, "invalid participant id")
		return
	}
	quota, err := c.Ledger.GetOrCreate(uint(id), uint(participantID))
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, quota)
}
