// Package config provides configuration parsing for the yhttpd command.
//
// The configuration is stored in yhttpd.json. This package handles loading,
// saving and validating it, and converts it to the engine's own configs.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "port": 8080,
//	    "bindAddress4": "127.0.0.1",
//	    "readTimeout": "30s",
//	    "logRequests": true
//	  },
//	  "guard": {
//	    "enabled": true,
//	    "allowedMethods": ["GET", "POST"],
//	    "allowedHosts": ["localhost"]
//	  },
//	  "static": [
//	    {"path": "/robots.txt", "contentType": "text/plain", "body": "User-agent: *"}
//	  ],
//	  "folders": [
//	    {"prefix": "/", "dir": "./www", "cache": "production"}
//	  ],
//	  "sse": {"path": "/events/clock", "interval": "1s"},
//	  "notify": {"path": "/notify", "eventsPath": "/events/notify"},
//	  "bucket": {"name": "assets", "prefix": "/assets", "region": "eu-west-1"},
//	  "admin": {"prefix": "/admin"}
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv := server.New(cfg.EngineConfig())
package config
