// Command odmctl checks ODM databases and runs the signal lifecycle
// against them.
//
//	odmctl [-config file] [-database url] [-codec name] [-log-debug] check|demo
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rainycape/odm/config"
	"github.com/rainycape/odm/log"
	"github.com/rainycape/odm/odm"
	_ "github.com/rainycape/odm/odm/driver/dynamodb"
	_ "github.com/rainycape/odm/odm/driver/memory"
	_ "github.com/rainycape/odm/odm/driver/postgres"
	_ "github.com/rainycape/odm/odm/driver/sqlite"
)

type command struct {
	help string
	fn   func(ctx context.Context, db *odm.ODM, w io.Writer) error
}

var commands = map[string]*command{
	"check": {help: "Open the database and check that it's reachable", fn: checkCommand},
	"demo":  {help: "Save, update and delete a document while printing its signals", fn: demoCommand},
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: odmctl [-config file] [-database url] [-codec name] [-log-debug] <command>")
	fmt.Fprintln(w, "\ncommands:")
	names := make([]string, 0, len(commands))
	for k := range commands {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, v := range names {
		fmt.Fprintf(w, "  %-8s %s\n", v, commands[v].help)
	}
}

func openDatabase(cfg *config.Config) (*odm.ODM, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("no database configured")
	}
	url := *cfg.Database
	if cfg.Codec != "" {
		opts := config.Options{}
		for k, v := range url.Options {
			opts[k] = v
		}
		opts["codec"] = cfg.Codec
		url.Options = opts
	}
	return odm.New(&url)
}

func run(ctx context.Context, args []string, w io.Writer) error {
	var cfg config.Config
	rem, err := config.ParseArgs("odmctl", &cfg, append(envArgs(), args...))
	if err != nil {
		return err
	}
	if cfg.LogDebug {
		log.SetLevel(log.LDebug)
	}
	if len(rem) != 1 {
		usage(w)
		return fmt.Errorf("expecting one command, got %d", len(rem))
	}
	cmd := commands[rem[0]]
	if cmd == nil {
		usage(w)
		return fmt.Errorf("unknown command %q", rem[0])
	}
	db, err := openDatabase(&cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return cmd.fn(ctx, db, w)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("odmctl: %s", err)
	}
}
