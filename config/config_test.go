package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fxsignal/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ROBOT", "")
	t.Setenv("BARS", "")
	t.Setenv("TIMEFRAME", "")
	t.Setenv("TREND_TIMEFRAME", "")
	t.Setenv("EVAL_INTERVAL", "")

	cfg := Load()
	assert.Equal(t, "entropy", cfg.Robot)
	assert.Equal(t, 5*time.Minute, cfg.EvalInterval)
	assert.Equal(t, model.TF5m, cfg.TF())
	assert.Equal(t, model.Timeframe(""), cfg.TrendTF())
	assert.Equal(t, 100, cfg.Bars)
}

func TestLoad_MacdDefaults(t *testing.T) {
	t.Setenv("ROBOT", "macd")
	t.Setenv("BARS", "")
	t.Setenv("TIMEFRAME", "")
	t.Setenv("TREND_TIMEFRAME", "")
	t.Setenv("EVAL_INTERVAL", "")

	cfg := Load()
	assert.Equal(t, model.TF15m, cfg.TF())
	assert.Equal(t, 15*time.Minute, cfg.EvalInterval, "one run per closed 15m candle")
	assert.Equal(t, model.TF1h, cfg.TrendTF())
	assert.Equal(t, 200, cfg.Bars)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INSTRUMENTS", "EURUSDb:5,USDJPYb:3")
	t.Setenv("WORKERS", "3")
	t.Setenv("RISK_PER_TRADE", "25.5")
	t.Setenv("EVAL_INTERVAL", "90s")

	cfg := Load()
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 25.5, cfg.RiskPerTrade)
	assert.Equal(t, 90*time.Second, cfg.EvalInterval)

	reg := cfg.ParseInstruments()
	d, ok := reg.Digits("USDJPYb")
	assert.True(t, ok)
	assert.Equal(t, 3, d)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("WORKERS", "many")
	t.Setenv("RISK_PER_TRADE", "-1")
	t.Setenv("EVAL_INTERVAL", "soon")
	t.Setenv("ROBOT", "")
	t.Setenv("TIMEFRAME", "")

	cfg := Load()
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 10.0, cfg.RiskPerTrade)
	assert.Equal(t, 5*time.Minute, cfg.EvalInterval)
}
