// Package logger provides a structured logging interface for the harvester.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional file output
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "vkharvest/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/vkharvest.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.WithField("feed_id", 123).Info("Harvest started")
//	logger.WithError(err).Error("Failed to persist batch")
//
// Advanced Usage:
//
//	log := logger.GetLogger().
//	    WithField("component", "harvester")
//
//	log.InfoWithFields("Page fetched", map[string]interface{}{
//	    "offset":           200,
//	    "budget_remaining": 4498,
//	})
package logger
