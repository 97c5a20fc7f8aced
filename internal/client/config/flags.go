package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/tripdesk/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   base URL of the back-office API
//	-d string   path to the local cache database
//	-s int      full sync interval in seconds
//	-i int      online check interval in seconds
//
// Only these flags are consumed; everything else is left for cobra.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the back-office API")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "path to the local cache database")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "full sync interval (in seconds)")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
