package main

import (
	"github.com/dogmatiq/ferrite"

	"github.com/rainycape/odm/config"
)

// FerriteRegistry is a registry of the environment variables used by odmctl.
var FerriteRegistry = ferrite.NewRegistry(
	"rainycape.odm",
	"odmctl",
	ferrite.WithDocumentationURL("https://github.com/rainycape/odm#readme"),
)

var databaseURL = ferrite.
	String("ODM_DATABASE", "the URL of the database, e.g. sqlite:///var/lib/odm.db").
	WithConstraint(
		"must be a driver URL",
		func(v string) bool {
			_, err := config.ParseURL(v)
			return err == nil
		},
	).
	Optional(ferrite.WithRegistry(FerriteRegistry))

var logDebug = ferrite.
	Bool("ODM_LOG_DEBUG", "log debug messages").
	Optional(ferrite.WithRegistry(FerriteRegistry))

// envArgs returns the flags equivalent to the environment variables
// which are set. They're prepended to the command line, so the
// environment overrides the config file while explicit flags
// still override the environment.
func envArgs() []string {
	var args []string
	if v, ok := databaseURL.Value(); ok {
		args = append(args, "-database="+v)
	}
	if v, ok := logDebug.Value(); ok && v {
		args = append(args, "-log-debug")
	}
	return args
}
