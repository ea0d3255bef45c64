// Package server exposes the campaign pipeline over HTTP. One campaign runs
// at a time; starting a second while one is active returns 409.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LukeyBoyy/MedusaGuard/internal/campaign"
	"github.com/LukeyBoyy/MedusaGuard/internal/config"
	"github.com/LukeyBoyy/MedusaGuard/internal/guarderr"
	"github.com/LukeyBoyy/MedusaGuard/internal/logging"
	"github.com/LukeyBoyy/MedusaGuard/internal/model"
	"github.com/LukeyBoyy/MedusaGuard/internal/store"
)

var active = struct {
	sync.Mutex
	id     string
	cancel context.CancelFunc
}{}

// newAggregator is a seam for tests.
var newAggregator = func(cfg *config.Config) *campaign.Aggregator {
	return campaign.New(cfg)
}

type Server struct {
	cfg *config.Config
	log *zap.SugaredLogger
}

func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg, log: logging.Sugar()}
}

func (s *Server) routes() *gin.Engine {
	r := gin.Default()
	r.POST("/campaign/start", s.startHandler)
	r.GET("/campaign/status/:id", s.statusHandler)
	r.GET("/campaign/result/:id", s.resultHandler)
	r.POST("/campaign/stop/:id", s.stopHandler)
	return r
}

// Run blocks serving HTTP on addr.
func (s *Server) Run(addr string) error {
	store.Init()
	s.log.Info("server: store initialized")

	srv := &http.Server{
		Addr:           addr,
		Handler:        s.routes(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	s.log.Infof("server: listening on %s", srv.Addr)
	return srv.ListenAndServe()
}

// startRequest optionally overrides the configured target set for this run.
type startRequest struct {
	TargetName string `json:"target_name"`
	HostsFile  string `json:"hosts_file"`
	TaskName   string `json:"task_name"`
}

func (s *Server) startHandler(ctx *gin.Context) {
	var req startRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		s.log.Errorf("server: invalid start request: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active.Lock()
	if active.id != "" {
		running := active.id
		active.Unlock()
		s.log.Warnf("server: campaign %s still running, rejecting start", running)
		ctx.JSON(http.StatusConflict, gin.H{"error": "a campaign is already running", "campaign_id": running})
		return
	}

	cfg := *s.cfg
	cfg.Apply(config.Overrides{
		TargetName: req.TargetName,
		HostsFile:  req.HostsFile,
		TaskName:   req.TaskName,
	})
	if err := cfg.Validate(); err != nil {
		active.Unlock()
		s.log.Errorf("server: invalid campaign config: %v", err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	active.id = id
	active.cancel = cancel
	active.Unlock()

	store.Set(id, model.CampaignRecord{
		ID:        id,
		TaskName:  cfg.Task.Name,
		StartedAt: time.Now(),
		Status:    model.StatusRunning,
	})
	s.log.Infof("server: campaign %s started", id)

	go s.runCampaign(runCtx, id, &cfg)

	ctx.JSON(http.StatusAccepted, gin.H{"campaign_id": id})
}

// runCampaign drives one campaign to completion and records the outcome.
func (s *Server) runCampaign(ctx context.Context, id string, cfg *config.Config) {
	lines := make(chan string, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range lines {
			store.AppendLine(id, line)
		}
	}()

	agg := newAggregator(cfg)
	agg.Notify = lines

	out, err := agg.Run(ctx)
	close(lines)
	<-done

	rec, _ := store.Get(id)
	now := time.Now()
	rec.FinishedAt = &now
	if err != nil {
		if guarderr.Fatal(err) {
			s.log.Errorf("server: campaign %s aborted: %v", id, err)
		} else {
			s.log.Warnf("server: campaign %s failed: %v", id, err)
		}
		rec.Status = model.StatusFailed
		if ctx.Err() != nil {
			rec.Status = model.StatusStopped
		}
	} else {
		rec.Status = out.Status
		rec.Summary = &out.Summary
		rec.CSVPath = out.CSVPath
		rec.PDFPath = out.PDFPath
	}
	store.Set(id, rec)

	active.Lock()
	if active.id == id {
		active.id = ""
		active.cancel = nil
	}
	active.Unlock()
	s.log.Infof("server: campaign %s finished with status %s", id, rec.Status)
}

func (s *Server) statusHandler(ctx *gin.Context) {
	id := ctx.Param("id")
	rec, ok := store.Get(id)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	ctx.JSON(http.StatusOK, rec)
}

func (s *Server) resultHandler(ctx *gin.Context) {
	id := ctx.Param("id")
	rec, ok := store.Get(id)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if rec.Status == model.StatusRunning {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "campaign not ready"})
		return
	}
	ctx.JSON(http.StatusOK, rec)
}

func (s *Server) stopHandler(ctx *gin.Context) {
	id := ctx.Param("id")
	if _, ok := store.Get(id); !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}

	active.Lock()
	defer active.Unlock()
	if active.id != id || active.cancel == nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": "campaign already finished"})
		return
	}
	active.cancel()
	s.log.Infof("server: stop signal sent for campaign %s", id)

	store.SetStatus(id, model.StatusStopped)
	rec, _ := store.Get(id)
	ctx.JSON(http.StatusOK, rec)
}
