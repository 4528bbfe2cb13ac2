package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReportConfig tunes report generation and export layout.
type ReportConfig struct {
	MaxRangeDays   int
	PDFRowsPerPage int
	PDFTitle       string
	CSVDelimiter   string
}

func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		MaxRangeDays:   366 * 3,
		PDFRowsPerPage: 25,
		PDFTitle:       "Medical billing report",
		CSVDelimiter:   ",",
	}
}

type ReportConfigHolder struct {
	current atomic.Value // holds ReportConfig
}

// NewStaticReportConfigHolder returns a holder that never reloads.
func NewStaticReportConfigHolder(cfg ReportConfig) *ReportConfigHolder {
	holder := &ReportConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReportConfigHolder(appCfg Config) (*ReportConfigHolder, error) {
	v := viper.New()

	if appCfg.ReportConfigPath != "" {
		v.SetConfigFile(appCfg.ReportConfigPath)
	} else {
		v.SetConfigName("report")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/shelterbill")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SHELTERBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReportConfig()
	v.SetDefault("report.maxRangeDays", defaults.MaxRangeDays)
	v.SetDefault("report.pdfRowsPerPage", defaults.PDFRowsPerPage)
	v.SetDefault("report.pdfTitle", defaults.PDFTitle)
	v.SetDefault("report.csvDelimiter", defaults.CSVDelimiter)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	cfg := readReportConfig(v)
	if err := validateReportConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticReportConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated := readReportConfig(v)
		if err := validateReportConfig(updated); err != nil {
			log.Printf("[report-config] invalid config ignored: %v", err)
			return
		}
		holder.Set(updated)
		log.Printf("[report-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// readReportConfig reads key by key so partial files fall back to defaults.
func readReportConfig(v *viper.Viper) ReportConfig {
	return ReportConfig{
		MaxRangeDays:   v.GetInt("report.maxRangeDays"),
		PDFRowsPerPage: v.GetInt("report.pdfRowsPerPage"),
		PDFTitle:       v.GetString("report.pdfTitle"),
		CSVDelimiter:   v.GetString("report.csvDelimiter"),
	}
}

func (h *ReportConfigHolder) Get() ReportConfig {
	if h == nil {
		return DefaultReportConfig()
	}
	return h.current.Load().(ReportConfig)
}

// Set replaces the active configuration.
func (h *ReportConfigHolder) Set(cfg ReportConfig) {
	h.current.Store(cfg)
}

func validateReportConfig(cfg ReportConfig) error {
	if cfg.MaxRangeDays <= 0 {
		return errors.New("report.maxRangeDays must be positive")
	}
	if cfg.PDFRowsPerPage <= 0 {
		return errors.New("report.pdfRowsPerPage must be positive")
	}
	if len([]rune(cfg.CSVDelimiter)) != 1 {
		return errors.New("report.csvDelimiter must be a single character")
	}
	return nil
}
