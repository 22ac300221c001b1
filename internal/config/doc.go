// Package config provides configuration parsing for Alpml projects.
//
// The configuration lives at the project root in alpml.json (comments and
// trailing commas are accepted), alpml.jsonc, or alpml.yaml. This package
// handles loading, saving, defaulting and validating it.
//
// # Configuration File Structure
//
//	{
//	  "pages": "site",
//	  "dev": {
//	    "port": 3000,
//	    "host": "localhost",
//	    "hotReload": true,
//	    "watch": ["site"]
//	  },
//	  "components": {
//	    "selector": "object[type='text/x-alpml']"
//	  },
//	  "reactivity": {
//	    "scriptURL": "https://cdn.jsdelivr.net/npm/alpinejs@3.x.x/dist/cdn.min.js"
//	  },
//	  "loader": {
//	    "httpTimeout": "10s",
//	    "s3": { "region": "eu-west-1" }
//	  },
//	  "log": { "level": "debug", "format": "text" }
//	}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.DevAddress())
package config
