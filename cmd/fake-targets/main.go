// Command fake-targets runs in-memory stand-ins for the work tracker, the
// wiki and the code host on one port, for local runs and demos.
//
//	/jira/mcp   /jira/rest/api/3/issue/{key}/attachments
//	/wiki/mcp   /wiki/wiki/rest/api/content/{id}/child/attachment
//	/git/mcp
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/rhuss/workbridge/pkg/faketargets"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}
	base := os.Getenv("FAKE_BASE_URL")
	if base == "" {
		base = "http://localhost:" + port
	}
	strict, _ := strconv.ParseBool(os.Getenv("FAKE_STRICT"))
	denyREST, _ := strconv.ParseBool(os.Getenv("FAKE_DENY_REST"))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := func(prefix string) faketargets.Options {
		return faketargets.Options{
			Token:    os.Getenv("FAKE_TOKEN"),
			DenyREST: denyREST,
			Strict:   strict,
			WebURL:   base + prefix,
			Logger:   logger.With("target", prefix[1:]),
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/jira/", http.StripPrefix("/jira", faketargets.NewTracker(opts("/jira")).Handler()))
	mux.Handle("/wiki/", http.StripPrefix("/wiki", faketargets.NewWiki(opts("/wiki")).Handler()))
	mux.Handle("/git/", http.StripPrefix("/git", faketargets.NewRepos(opts("/git")).Handler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	logger.Info("fake targets starting", "port", port, "strict", strict, "deny_rest", denyREST)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
