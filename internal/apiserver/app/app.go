// Package app 按配置装配服务组件
//
// api-server 与 accessctl 共用：打开基础设施、写入种子数据，
// 并构造认证器、生命周期管理器与楼栋推荐器。
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"campus-access/internal/apiserver/auth"
	"campus-access/internal/apiserver/lifecycle"
	"campus-access/internal/apiserver/setup"
	"campus-access/internal/apiserver/suggest"
	"campus-access/internal/config"
	"campus-access/internal/shared/infra"
	"campus-access/pkg/logging"
)

// devJWTSecret 非生产环境未配置 JWT_SECRET 时使用
const devJWTSecret = "campus-access-dev-secret"

// App 装配完成的组件
type App struct {
	Config        *config.Config
	Infra         *infra.Infrastructure
	Authenticator *auth.Authenticator
	Lifecycle     *lifecycle.Manager
	Suggester     suggest.Suggester
	Registry      *prometheus.Registry
	Log           *logging.Logger
}

// New 打开基础设施并装配组件；失败时已打开的连接会被关闭
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	inf, err := infra.Open(ctx, cfg, log.Named("infra"))
	if err != nil {
		return nil, err
	}
	a, err := Assemble(ctx, cfg, inf, log)
	if err != nil {
		inf.Close()
		return nil, err
	}
	return a, nil
}

// Assemble 在已打开的基础设施上装配组件（测试可传入内存基础设施）
func Assemble(ctx context.Context, cfg *config.Config, inf *infra.Infrastructure, log *logging.Logger) (*App, error) {
	seeded, err := setup.Seed(ctx, inf.Store, setup.Options{DemoData: cfg.Seed.DemoData}, log.Named("setup"))
	if err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if seeded {
		log.Info("Seed data written", "demo_data", cfg.Seed.DemoData)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sim := SimulationConfig(cfg)
	mgr := lifecycle.NewManager(inf.Store,
		lifecycle.WithEventBus(inf.Bus),
		lifecycle.WithMetrics(lifecycle.NewMetrics("campus_access", reg)),
		lifecycle.WithLogger(log.Named("lifecycle")),
		lifecycle.WithSimulation(sim, lifecycle.NewRandomPolicy(sim.ApprovalProbability, cfg.Simulation.Seed), cfg.Simulation.Enabled),
	)

	return &App{
		Config:        cfg,
		Infra:         inf,
		Authenticator: auth.NewAuthenticator(inf.Store, AuthConfig(cfg, log), log.Named("auth")),
		Lifecycle:     mgr,
		Suggester:     NewSuggester(cfg, log),
		Registry:      reg,
		Log:           log,
	}, nil
}

// Close 关闭基础设施
func (a *App) Close() error {
	return a.Infra.Close()
}

// AuthConfig 认证配置
func AuthConfig(cfg *config.Config, log *logging.Logger) auth.Config {
	out := auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
		RequireApproved: cfg.Auth.RequireApproved,
		EmailDomain:     cfg.Auth.EmailDomain,
	}
	if out.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using development secret")
		out.JWTSecret = devJWTSecret
	}
	def := auth.DefaultConfig()
	if out.AccessTokenTTL == 0 {
		out.AccessTokenTTL = def.AccessTokenTTL
	}
	if out.RefreshTokenTTL == 0 {
		out.RefreshTokenTTL = def.RefreshTokenTTL
	}
	if out.EmailDomain == "" {
		out.EmailDomain = def.EmailDomain
	}
	return out
}

// SimulationConfig 自动推进参数
func SimulationConfig(cfg *config.Config) lifecycle.SimulationConfig {
	return lifecycle.SimulationConfig{
		ReviewDelay:         cfg.Simulation.ReviewDelay,
		DecisionDelay:       cfg.Simulation.DecisionDelay,
		ApprovalProbability: cfg.Simulation.ApprovalProbability,
	}
}

// NewSuggester 按 suggestion.provider 选择推荐器
func NewSuggester(cfg *config.Config, log *logging.Logger) suggest.Suggester {
	if cfg.Suggestion.Provider == "http" {
		timeout := cfg.Suggestion.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		return suggest.NewHTTPSuggester(suggest.HTTPConfig{
			Endpoint: cfg.Suggestion.Endpoint,
			APIKey:   cfg.Suggestion.APIKey,
			Model:    cfg.Suggestion.Model,
			Timeout:  timeout,
		}, log.Named("suggest"))
	}
	return suggest.NewKeywordSuggester()
}
