// Command contacts lists and edits a remote contact list through an
// optimistic local cache.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"

	"github.com/unkn0wn-root/optcache"
	"github.com/unkn0wn-root/optcache/contacts"
	"github.com/unkn0wn-root/optcache/transport/httpapi"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	List    ListCmd          `cmd:"" help:"Print the contact list."`
	Add     AddCmd           `cmd:"" help:"Add a contact."`
	Delete  DeleteCmd        `cmd:"" help:"Delete a contact by id."`
	Import  ImportCmd        `cmd:"" help:"Add every contact listed in a YAML file."`
}

// Globals are shared by every command. Each flag falls back to a CONTACTS_*
// environment variable.
type Globals struct {
	BaseURL   string        `help:"Contacts API base URL." env:"CONTACTS_BASE_URL" default:"${base_url}"`
	Limit     int           `help:"Number of contacts to fetch (0 = server default)." env:"CONTACTS_LIMIT" default:"6"`
	Timeout   time.Duration `help:"HTTP request timeout." env:"CONTACTS_TIMEOUT" default:"10s"`
	Rate      float64       `help:"Max requests per second to the API (0 = unlimited)." env:"CONTACTS_RATE" default:"0"`
	Namespace string        `help:"Cache namespace." env:"CONTACTS_NAMESPACE" default:"contacts"`
	Provider  string        `help:"Cache provider." enum:"memory,bigcache,ristretto,redis" env:"CONTACTS_PROVIDER" default:"memory"`
	RedisAddr string        `help:"Redis address for the redis provider." env:"CONTACTS_REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int           `help:"Redis database." env:"CONTACTS_REDIS_DB" default:"0"`
	TTL       time.Duration `help:"Cached list lifetime (0 = no expiry)." env:"CONTACTS_TTL" default:"0s"`
	Codec     string        `help:"Stored value codec." enum:"json,cbor,msgpack,protobuf" env:"CONTACTS_CODEC" default:"json"`
	Log       string        `help:"Log backend." enum:"zap,logrus,slog" env:"CONTACTS_LOG" default:"zap"`
	Verbose   bool          `help:"Enable debug logging." short:"v" env:"CONTACTS_VERBOSE"`
	Hooks     string        `help:"Cache event reporting." enum:"none,slog,otel" env:"CONTACTS_HOOKS" default:"none"`
	Output    string        `help:"Output format." short:"o" enum:"text,json,yaml" env:"CONTACTS_OUTPUT" default:"text"`
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("contacts"),
		kong.Description("Optimistically cached contact list client."),
		kong.UsageOnError(),
		kong.Vars{
			"version":  version + " " + commit + " " + date,
			"base_url": httpapi.DefaultBaseURL,
		},
	}
}

func main() {
	var cli CLI
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	kctx := kong.Parse(&cli, append(kongOptions(), kong.BindTo(ctx, (*context.Context)(nil)))...)
	err := kctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to process exit codes: 2 for refused input, 3 for a
// failed or rolled back remote call, 1 otherwise.
func exitCode(err error) int {
	var terr *optcache.TransportError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, contacts.ErrInvalidInput), errors.Is(err, contacts.ErrPendingRecord):
		return 2
	case errors.As(err, &terr):
		return 3
	default:
		return 1
	}
}
