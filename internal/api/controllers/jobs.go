package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"vlget/internal/app"
	"vlget/internal/domain"
)

type JobsController struct {
	App *app.Context
}

// Create resolves a content page URL and queues one job per selected item.
func (ctrl *JobsController) Create(c *echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "url is required"})
	}

	jobs, err := ctrl.App.Builder.BuildJobs(c.Request().Context(), req.URL, domain.SelectOptions{
		Seasons:  req.Seasons,
		Episodes: req.Episodes,
		Height:   req.Height,
		Raw:      req.Raw,
		Tag:      req.Tag,
	})
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}

	for _, job := range jobs {
		ctrl.App.Queue.Add(job)
	}
	return c.JSON(http.StatusCreated, viewsOf(jobs))
}

// List returns every job still tracked by the queue.
func (ctrl *JobsController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, viewsOf(ctrl.App.Queue.Jobs()))
}

// Active returns the currently running job, or 204 when idle.
func (ctrl *JobsController) Active(c *echo.Context) error {
	job := ctrl.App.Queue.ActiveJob()
	if job == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, viewOf(job))
}

func (ctrl *JobsController) Get(c *echo.Context) error {
	job, ok := ctrl.App.Queue.Job(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, viewOf(job))
}

func (ctrl *JobsController) Cancel(c *echo.Context) error {
	if !ctrl.App.Queue.Cancel(c.Param("id")) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "job not cancellable"})
	}
	return c.NoContent(http.StatusAccepted)
}

// History lists recorded acquisitions, newest first.
func (ctrl *JobsController) History(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, []struct{}{})
	}
	items, err := ctrl.App.History.List(c.Request().Context(), 100)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, items)
}

func (ctrl *JobsController) HistoryItem(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "history disabled"})
	}
	item, err := ctrl.App.History.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if item == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "acquisition not found"})
	}
	return c.JSON(http.StatusOK, item)
}
