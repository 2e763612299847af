// Package config provides configuration parsing for pathway projects.
//
// The configuration is stored in pathway.json at the project root.
// This package handles loading, saving, and validating configuration.
//
// # Configuration File Structure
//
//	{
//	  "manifest": {
//	    "location": "routes.json"
//	  },
//	  "router": {
//	    "basepath": "/app",
//	    "search": "comma",
//	    "loaderConcurrency": 4
//	  },
//	  "inspect": {
//	    "host": "localhost",
//	    "port": 7070
//	  },
//	  "metrics": {
//	    "namespace": "shop"
//	  },
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  }
//	}
//
// The manifest location may also be an S3 object:
//
//	"manifest": {"location": "s3://routes/shop.json", "region": "eu-west-1"}
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inspect:", cfg.InspectAddress())
package config
