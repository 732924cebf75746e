package config

// Config contains the common fields used to configure a program
// using the ODM. It's parsed by cmd/odmctl, but any program can
// embed it into its own configuration struct.
type Config struct {
	// Database is the URL passed to odm.New, e.g. sqlite:///tmp/odm.db
	// or memory://name.
	Database *URL `help:"Database to connect to" default:"memory://default"`
	// Codec overrides the codec option in the Database URL.
	Codec string `help:"Codec used to encode documents (json, gob, msgpack or bson)"`
	// LogDebug sets the level of log.Std to debug, rather than info.
	LogDebug bool `help:"Set the logging level to debug"`
}
