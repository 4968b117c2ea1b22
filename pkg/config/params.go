package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Params are the tunable trading parameters, loadable from a YAML file so
// operators can adjust them without a rebuild. Zero values fall back to the
// component defaults.
type Params struct {
	Indicators struct {
		EMAFast    int     `yaml:"ema_fast"`
		EMASlow    int     `yaml:"ema_slow"`
		RSIPeriod  int     `yaml:"rsi_period"`
		MACDFast   int     `yaml:"macd_fast"`
		MACDSlow   int     `yaml:"macd_slow"`
		MACDSignal int     `yaml:"macd_signal"`
		BollPeriod int     `yaml:"boll_period"`
		BollStdDev float64 `yaml:"boll_std_dev"`
	} `yaml:"indicators"`

	Risk struct {
		MaxConcurrent int     `yaml:"max_concurrent_positions"`
		DailyBudget   float64 `yaml:"daily_budget"`
		PositionSize  float64 `yaml:"position_size"`
		StopLossPct   float64 `yaml:"stop_loss_pct"`
		TakeProfitPct float64 `yaml:"take_profit_pct"`
	} `yaml:"risk"`

	Entry struct {
		Tranches           int `yaml:"tranches"`
		TrancheIntervalSec int `yaml:"tranche_interval_sec"`
	} `yaml:"entry"`
}

// LoadParams reads the YAML parameter file. An empty path returns zero-value
// params so every component uses its own defaults.
func LoadParams(path string) (Params, error) {
	var p Params
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read params file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse params file: %w", err)
	}
	return p, nil
}
