// Package config provides the stage variant registry and the YAML configuration
// of a planning pipeline.
//
// The defaults (every stage with its reference variants and log scripts) are
// embedded; a file only needs the keys it changes:
//
//	initial_status: idle
//	sync_policy: cascade
//	delay:
//	  min: 50ms
//	  max: 100ms
//	stages:
//	  dp:
//	    default: arima
//	    variants:
//	      - prophet
//	      - id: arima
//	        name: ARIMA
//	        script:
//	          - "[INFO] Fitting ARIMA(2,1,1)"
//	          - "[WARN] Residual autocorrelation at lag 12"
//
// Load a file (or URL) with LoadSource, then build an orchestrator with
// Build(nil, cfg, opts). BuildOptions carries observers, output stores and
// command-line overrides such as the selected variants.
package config
