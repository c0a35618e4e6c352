// Package config loads the agent's INI configuration file.
package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Config holds everything the agent needs at construction time.
type Config struct {
	// APIKey authenticates against the completion service.
	APIKey string

	// Model is the primary completion model; AnalysisModel is the
	// smaller/faster model used for the action pre-pass.
	Model         string
	AnalysisModel string

	// DBFile is the SQLite path for dialogue history and memories.
	DBFile string

	// VectorModel is the path to the word-vector text model file.
	VectorModel string

	// Persona settings injected into the prompt.
	NameOfUser   string
	NameOfAgent  string
	UserPronouns string

	// Weather enrichment; interval of zero disables the refresher.
	WeatherAPIKey   string
	WeatherInterval time.Duration
}

// Load reads an INI file in the layout the front ends share:
//
//	[default]
//	api_key        = ...
//	api_model      = claude-sonnet-4-20250514
//	analysis_model = claude-3-5-haiku-latest
//	db_file        = memories.db
//	vector_model   = vectors.txt
//	name_of_user   = ...
//	name_of_agent  = ...
//	user_pronouns  = ...
//
//	[openweathermap]
//	api_key         = ...
//	update_interval = 600
func Load(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	def := f.Section("default")
	cfg := &Config{
		APIKey:        def.Key("api_key").String(),
		Model:         def.Key("api_model").String(),
		AnalysisModel: def.Key("analysis_model").String(),
		DBFile:        def.Key("db_file").MustString("memories.db"),
		VectorModel:   def.Key("vector_model").String(),
		NameOfUser:    def.Key("name_of_user").String(),
		NameOfAgent:   def.Key("name_of_agent").String(),
		UserPronouns:  def.Key("user_pronouns").String(),
	}

	weather := f.Section("openweathermap")
	cfg.WeatherAPIKey = weather.Key("api_key").String()
	cfg.WeatherInterval = time.Duration(weather.Key("update_interval").MustInt(0)) * time.Second

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("config: %s: default.api_key is required", path)
	}
	return cfg, nil
}
