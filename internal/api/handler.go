package api

import (
	"context"
	"errors"
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/video-analitics/queuesorter/pkg/catalog"
	"github.com/video-analitics/queuesorter/pkg/logger"
	"github.com/video-analitics/queuesorter/pkg/orchestrator"
	"github.com/video-analitics/queuesorter/pkg/queue"
	"github.com/video-analitics/queuesorter/pkg/settings"
	"github.com/video-analitics/queuesorter/pkg/sorting"
	"github.com/video-analitics/queuesorter/pkg/source"
	"github.com/video-analitics/queuesorter/pkg/status"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Queue is one sortable queue. Items is set when the queue is fed through
// the API rather than read from a page.
type Queue struct {
	Orch  *orchestrator.Orchestrator
	Items *source.Static
}

type Handler struct {
	queues map[string]Queue
}

func NewHandler(queues map[string]Queue) *Handler {
	return &Handler{queues: queues}
}

func SetupRoutes(app *fiber.App, h *Handler, auth fiber.Handler) {
	app.Get("/health", h.Health)

	api := app.Group("/api", auth)
	api.Get("/presets", h.Presets)
	api.Get("/queues", h.List)

	q := api.Group("/queues/:queue", h.resolve)
	q.Get("/fields", h.Fields)
	q.Post("/items", h.ReplaceItems)
	q.Post("/sort", h.Sort)
	q.Post("/cancel", h.Cancel)
	q.Post("/undo", h.Undo)
	q.Get("/status", h.Status)
	q.Get("/orders/:key", h.GetOrder)
	q.Put("/orders/:key", h.SetOrder)
	q.Delete("/orders/:key", h.ResetOrder)
	q.Get("/settings", h.GetSettings)
	q.Put("/settings", h.UpdateSettings)
	q.Delete("/cache", h.ClearCache)
}

func (h *Handler) resolve(c *fiber.Ctx) error {
	name := c.Params("queue")
	q, ok := h.queues[name]
	if !ok {
		return c.Status(404).JSON(ErrorResponse{Error: "queue not found"})
	}
	if !allowQueue(c, name) {
		return c.Status(403).JSON(ErrorResponse{Error: "token does not cover this queue"})
	}
	c.Locals("queue", q)
	return c.Next()
}

func current(c *fiber.Ctx) Queue {
	return c.Locals("queue").(Queue)
}

// Health godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "queues": len(h.queues)})
}

// Presets godoc
// @Summary List sort presets
// @Tags sort
// @Produce json
// @Security BearerAuth
// @Success 200 {array} sorting.Preset
// @Router /api/presets [get]
func (h *Handler) Presets(c *fiber.Ctx) error {
	return c.JSON(sorting.Presets())
}

type QueueSummary struct {
	Name    string              `json:"name"`
	State   status.Orchestrator `json:"state"`
	CanUndo bool                `json:"can_undo"`
}

// List godoc
// @Summary List queues
// @Tags queues
// @Produce json
// @Security BearerAuth
// @Success 200 {array} QueueSummary
// @Router /api/queues [get]
func (h *Handler) List(c *fiber.Ctx) error {
	out := make([]QueueSummary, 0, len(h.queues))
	for name, q := range h.queues {
		out = append(out, QueueSummary{Name: name, State: q.Orch.State(), CanUndo: q.Orch.CanUndo()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return c.JSON(out)
}

// Fields godoc
// @Summary List sortable fields
// @Description Selectable fields of the queue and of every retriever attached to it
// @Tags queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Success 200 {array} catalog.Option
// @Failure 404 {object} ErrorResponse
// @Router /api/queues/{queue}/fields [get]
func (h *Handler) Fields(c *fiber.Ctx) error {
	return c.JSON(catalog.Options(current(c).Orch.Catalogs()...))
}

// ReplaceItems godoc
// @Summary Replace queue items
// @Tags queues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param request body []source.RawItem true "Items in queue order"
// @Success 200 {object} map[string]int
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Queue is page-backed or busy"
// @Router /api/queues/{queue}/items [post]
func (h *Handler) ReplaceItems(c *fiber.Ctx) error {
	q := current(c)
	if q.Items == nil {
		return c.Status(409).JSON(ErrorResponse{Error: "queue is read from its page"})
	}
	if q.Orch.State().IsBusy() {
		return c.Status(409).JSON(ErrorResponse{Error: orchestrator.ErrBusy.Error()})
	}

	var raw []source.RawItem
	if err := c.BodyParser(&raw); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	items, err := source.FromRaw(raw)
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: err.Error()})
	}

	q.Items.Replace(items)
	return c.JSON(fiber.Map{"items": len(items)})
}

type SortRequest struct {
	Preset       string            `json:"preset"`
	Commands     []sorting.Command `json:"commands"`
	Range        *settings.Range   `json:"range"`
	ForceRefresh bool              `json:"force_refresh"`
	// Wait runs the sort inside the request instead of in the background.
	Wait bool `json:"wait"`
}

// Sort godoc
// @Summary Sort a queue
// @Description Runs in the background unless wait is set. Invalid input is rejected before anything starts.
// @Tags sort
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param request body SortRequest true "Preset or commands"
// @Success 200 {object} orchestrator.Result "Finished (wait)"
// @Success 202 {object} map[string]string "Started"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Queue busy"
// @Failure 422 {object} ErrorResponse "Malformed queue"
// @Router /api/queues/{queue}/sort [post]
func (h *Handler) Sort(c *fiber.Ctx) error {
	var body SortRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	cmds, err := sorting.Resolve(body.Preset, body.Commands)
	if err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: err.Error()})
	}

	orch := current(c).Orch
	req := orchestrator.Request{Commands: cmds, Range: body.Range, ForceRefresh: body.ForceRefresh}

	if body.Wait {
		res, err := orch.Run(c.UserContext(), req)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(res)
	}

	// fiber recycles the request context once the handler returns
	if err := orch.Start(context.Background(), req); err != nil {
		return writeError(c, err)
	}
	logger.Log.Info().Str("queue", orch.Namespace()).Str("preset", body.Preset).Msg("sort started")
	return c.Status(202).JSON(fiber.Map{"state": orch.State()})
}

// Cancel godoc
// @Summary Cancel a running sort
// @Tags sort
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Success 200 {object} map[string]bool
// @Router /api/queues/{queue}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cancelled": current(c).Orch.Cancel()})
}

// Undo godoc
// @Summary Undo the last sort
// @Description A second undo re-applies the undone order
// @Tags sort
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Success 200 {object} map[string]string
// @Failure 409 {object} ErrorResponse
// @Router /api/queues/{queue}/undo [post]
func (h *Handler) Undo(c *fiber.Ctx) error {
	id, err := current(c).Orch.Undo(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"snapshot_id": id})
}

type StatusResponse struct {
	State    status.Orchestrator   `json:"state"`
	Progress queue.Progress        `json:"progress"`
	CanUndo  bool                  `json:"can_undo"`
	Last     *orchestrator.Outcome `json:"last,omitempty"`
	// InState answers the optional ?state= query.
	InState *bool `json:"in_state,omitempty"`
}

// Status godoc
// @Summary Queue status
// @Tags queues
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param state query string false "Report whether the queue is in this state"
// @Success 200 {object} StatusResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/queues/{queue}/status [get]
func (h *Handler) Status(c *fiber.Ctx) error {
	orch := current(c).Orch
	resp := StatusResponse{
		State:    orch.State(),
		Progress: orch.Progress(),
		CanUndo:  orch.CanUndo(),
		Last:     orch.LastOutcome(),
	}

	if raw := c.Query("state"); raw != "" {
		want, err := status.Parse(raw)
		if err != nil {
			return c.Status(400).JSON(ErrorResponse{Error: err.Error()})
		}
		in := resp.State == want
		resp.InState = &in
	}
	return c.JSON(resp)
}

type OrderBody struct {
	Order []string `json:"order"`
}

// GetOrder godoc
// @Summary Get a custom order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param key path string true "Order key"
// @Success 200 {object} map[string]interface{}
// @Router /api/queues/{queue}/orders/{key} [get]
func (h *Handler) GetOrder(c *fiber.Ctx) error {
	order, ok, err := current(c).Orch.Settings().CustomOrder(c.UserContext(), c.Params("key"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"order": order, "custom": ok})
}

// SetOrder godoc
// @Summary Set a custom order
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param key path string true "Order key"
// @Param request body OrderBody true "Priority list"
// @Success 200 {object} OrderBody
// @Failure 400 {object} ErrorResponse
// @Router /api/queues/{queue}/orders/{key} [put]
func (h *Handler) SetOrder(c *fiber.Ctx) error {
	var body OrderBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if err := current(c).Orch.Settings().SetCustomOrder(c.UserContext(), c.Params("key"), body.Order); err != nil {
		return writeError(c, err)
	}
	return c.JSON(body)
}

// ResetOrder godoc
// @Summary Reset a custom order to its default
// @Tags orders
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param key path string true "Order key"
// @Success 204
// @Router /api/queues/{queue}/orders/{key} [delete]
func (h *Handler) ResetOrder(c *fiber.Ctx) error {
	if err := current(c).Orch.Settings().ResetCustomOrder(c.UserContext(), c.Params("key")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(204)
}

type SettingsBody struct {
	Range        *settings.Range `json:"range,omitempty"`
	ForceRefresh *bool           `json:"force_refresh,omitempty"`
	Debug        *bool           `json:"debug,omitempty"`
}

// GetSettings godoc
// @Summary Get queue settings
// @Tags settings
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Success 200 {object} SettingsBody
// @Router /api/queues/{queue}/settings [get]
func (h *Handler) GetSettings(c *fiber.Ctx) error {
	s := current(c).Orch.Settings()
	ctx := c.UserContext()

	rng, err := s.Range(ctx)
	if err != nil {
		return writeError(c, err)
	}
	force, err := s.ForceRefresh(ctx)
	if err != nil {
		return writeError(c, err)
	}
	debug, err := s.Debug(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(SettingsBody{Range: &rng, ForceRefresh: &force, Debug: &debug})
}

// UpdateSettings godoc
// @Summary Update queue settings
// @Tags settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Param request body SettingsBody true "Fields to change"
// @Success 200 {object} SettingsBody
// @Failure 400 {object} ErrorResponse
// @Router /api/queues/{queue}/settings [put]
func (h *Handler) UpdateSettings(c *fiber.Ctx) error {
	var body SettingsBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(ErrorResponse{Error: "invalid request body"})
	}

	s := current(c).Orch.Settings()
	ctx := c.UserContext()
	if body.Range != nil {
		if !body.Range.IsZero() && (body.Range.From < 1 || body.Range.From > body.Range.To) {
			return c.Status(400).JSON(ErrorResponse{Error: orchestrator.ErrInvalidRange.Error()})
		}
		if err := s.SetRange(ctx, *body.Range); err != nil {
			return writeError(c, err)
		}
	}
	if body.ForceRefresh != nil {
		if err := s.SetForceRefresh(ctx, *body.ForceRefresh); err != nil {
			return writeError(c, err)
		}
	}
	if body.Debug != nil {
		if err := s.SetDebug(ctx, *body.Debug); err != nil {
			return writeError(c, err)
		}
	}
	return h.GetSettings(c)
}

// ClearCache godoc
// @Summary Clear the queue's field cache
// @Tags settings
// @Security BearerAuth
// @Param queue path string true "Queue name"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /api/queues/{queue}/cache [delete]
func (h *Handler) ClearCache(c *fiber.Ctx) error {
	orch := current(c).Orch
	if orch.State().IsBusy() {
		return c.Status(409).JSON(ErrorResponse{Error: orchestrator.ErrBusy.Error()})
	}
	if err := orch.Cache().Clear(c.UserContext()); err != nil {
		return writeError(c, err)
	}
	logger.Log.Info().Str("queue", orch.Namespace()).Msg("cache cleared")
	return c.SendStatus(204)
}

func writeError(c *fiber.Ctx, err error) error {
	code := 500
	switch {
	case errors.Is(err, orchestrator.ErrBusy),
		errors.Is(err, orchestrator.ErrNothingToUndo),
		errors.Is(err, orchestrator.ErrCancelled):
		code = 409
	case errors.Is(err, orchestrator.ErrInvalidRange),
		errors.Is(err, sorting.ErrInvalidCommand),
		errors.Is(err, settings.ErrEmptyOrder):
		code = 400
	case errors.Is(err, orchestrator.ErrStructure):
		code = 422
	}
	if code == 500 {
		logger.Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}
