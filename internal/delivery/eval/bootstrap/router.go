package bootstrap

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"taskbench/evaluation/results"
	"taskbench/evaluation/task_mgmt"
	"taskbench/internal/shared/logging"
)

// APIResponse is the envelope of every /api response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RouterDeps are the components the API reads from.
type RouterDeps struct {
	Catalog  *Catalog
	Store    *results.Store
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
}

// RouterConfig controls middleware.
type RouterConfig struct {
	AllowedOrigins []string
	Debug          bool
}

// ServiceSummary is one row of GET /api/services.
type ServiceSummary struct {
	Name       string   `json:"name"`
	Tasks      int      `json:"tasks"`
	Warnings   int      `json:"warnings"`
	Categories []string `json:"categories"`
}

// RunDetail is the response of GET /api/runs/:run/:service.
type RunDetail struct {
	Summary *results.Summary `json:"summary"`
	Records []results.Record `json:"records"`
}

type warningView struct {
	task_mgmt.MalformedTaskWarning
	Detail string `json:"detail,omitempty"`
}

// NewRouter wires the read-only API.
func NewRouter(deps RouterDeps, cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := logging.OrNop(deps.Logger)
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	engine.Use(cors.New(corsConfig))

	h := &handler{catalog: deps.Catalog, store: deps.Store, logger: logger}

	engine.GET("/health", h.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	{
		api.GET("/services", h.listServices)
		api.POST("/refresh", h.refresh)

		svc := api.Group("/services/:service")
		svc.GET("/tasks", h.listTasks)
		svc.GET("/categories", h.listCategories)
		svc.GET("/warnings", h.listWarnings)
		svc.GET("/tasks/:category/:id/instruction", h.instruction)

		api.GET("/runs", h.listRuns)
		api.GET("/runs/:run/:service", h.getRun)
	}
	return engine
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

type handler struct {
	catalog *Catalog
	store   *results.Store
	logger  logging.Logger
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, APIResponse{Success: false, Error: msg})
}

func (h *handler) health(c *gin.Context) {
	ok(c, gin.H{"status": "ok", "services": len(h.catalog.Services())})
}

func (h *handler) manager(c *gin.Context) (*task_mgmt.TaskManager, bool) {
	name := c.Param("service")
	m, found := h.catalog.Manager(name)
	if !found {
		fail(c, http.StatusNotFound, "unknown service: "+name)
		return nil, false
	}
	return m, true
}

func (h *handler) listServices(c *gin.Context) {
	names := h.catalog.Services()
	out := make([]ServiceSummary, 0, len(names))
	for _, name := range names {
		m, _ := h.catalog.Manager(name)
		out = append(out, ServiceSummary{
			Name:       name,
			Tasks:      len(m.Tasks()),
			Warnings:   len(m.Warnings()),
			Categories: m.Categories(),
		})
	}
	ok(c, out)
}

func (h *handler) refresh(c *gin.Context) {
	if err := h.catalog.Refresh(); err != nil {
		h.logger.Error("refresh failed: %v", err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.listServices(c)
}

func (h *handler) listTasks(c *gin.Context) {
	m, found := h.manager(c)
	if !found {
		return
	}
	tasks := m.Filter(c.Query("filter"))
	if tasks == nil {
		tasks = []task_mgmt.Task{}
	}
	ok(c, tasks)
}

func (h *handler) listCategories(c *gin.Context) {
	m, found := h.manager(c)
	if !found {
		return
	}
	categories := m.Categories()
	if categories == nil {
		categories = []string{}
	}
	ok(c, categories)
}

func (h *handler) listWarnings(c *gin.Context) {
	m, found := h.manager(c)
	if !found {
		return
	}
	warnings := m.Warnings()
	out := make([]warningView, 0, len(warnings))
	for _, w := range warnings {
		view := warningView{MalformedTaskWarning: w}
		if w.Err != nil {
			view.Detail = w.Err.Error()
		}
		out = append(out, view)
	}
	ok(c, out)
}

func (h *handler) instruction(c *gin.Context) {
	m, found := h.manager(c)
	if !found {
		return
	}
	key := c.Param("category") + "/" + c.Param("id")
	task, found := m.Get(key)
	if !found {
		fail(c, http.StatusNotFound, "unknown task: "+key)
		return
	}
	text, err := m.Instruction(task)
	if err != nil {
		h.logger.Warn("instruction %s: %v", key, err)
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	ok(c, gin.H{"task": task, "instruction": text})
}

func (h *handler) listRuns(c *gin.Context) {
	if h.store == nil {
		ok(c, []results.Summary{})
		return
	}
	summaries, err := h.store.ListSummaries()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []results.Summary{}
	}
	ok(c, summaries)
}

func (h *handler) getRun(c *gin.Context) {
	if h.store == nil {
		fail(c, http.StatusNotFound, "no results store configured")
		return
	}
	runID, service := c.Param("run"), c.Param("service")
	summary, err := h.store.LoadSummary(runID, service)
	if err != nil {
		h.storeError(c, err)
		return
	}
	records, err := h.store.LoadRecords(runID, service)
	if err != nil {
		h.storeError(c, err)
		return
	}
	ok(c, RunDetail{Summary: summary, Records: records})
}

func (h *handler) storeError(c *gin.Context, err error) {
	if errors.Is(err, results.ErrNotFound) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	fail(c, http.StatusBadRequest, err.Error())
}
