// Package federation fans read-only queries across every registered
// repository database and merges the results.
//
// There is no central store to query: each repository keeps its own
// SQLite database, and the registry only knows where they live. A
// federated query therefore opens each database in turn, runs the
// per-repo query, and folds the rows together. One broken repository (a
// moved database, a corrupt file, an ancient schema) must never sink the
// whole query, so per-repo failures are demoted to warnings and the scan
// continues.
package federation

import (
	"fmt"
	"sort"

	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
	"github.com/teslamint/entirecontext/internal/registry"
	"github.com/teslamint/entirecontext/internal/sync"
)

// RepoSession is a session tagged with the repository it came from.
type RepoSession struct {
	RepoName string      `json:"repo_name"`
	RepoPath string      `json:"repo_path"`
	Session  *db.Session `json:"session"`
}

// RepoTurn is a search hit tagged with its repository.
type RepoTurn struct {
	RepoName string   `json:"repo_name"`
	RepoPath string   `json:"repo_path"`
	Turn     *db.Turn `json:"turn"`
}

// ListRepos returns the registered repositories, optionally filtered by
// name.
func ListRepos(names []string) ([]registry.Entry, error) {
	reg, err := registry.OpenDefault()
	if err != nil {
		return nil, err
	}
	defer reg.Close()
	return reg.List(names)
}

// forEachRepo opens each repository database and applies fn. A failure to
// open, a query error, or a panic inside fn becomes one warning naming the
// repository; the remaining repositories are still visited.
func forEachRepo(entries []registry.Entry, fn func(*db.DB, registry.Entry) error) []string {
	var warnings []string
	for _, entry := range entries {
		warnings = append(warnings, visitRepo(entry, fn)...)
	}
	return warnings
}

func visitRepo(entry registry.Entry, fn func(*db.DB, registry.Entry) error) (warnings []string) {
	defer func() {
		if r := recover(); r != nil {
			warnings = append(warnings,
				fmt.Sprintf("%s: query panicked: %v", entry.RepoName, r))
		}
	}()

	d, err := db.Open(entry.DBPath)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", entry.RepoName, err)}
	}
	defer d.Close()

	if err := fn(d, entry); err != nil {
		return []string{fmt.Sprintf("%s: %v", entry.RepoName, err)}
	}
	return nil
}

// lazyPull refreshes stale repositories before a federated read when
// auto_pull is enabled. Pull failures never block the read; the data is
// just older than it could be.
func lazyPull(entries []registry.Entry) {
	for _, entry := range entries {
		cfg, err := config.Load(entry.RepoPath)
		if err != nil || !cfg.Sync.AutoPull {
			continue
		}

		d, err := db.Open(entry.DBPath)
		if err != nil {
			continue
		}
		state, err := d.GetSyncState()
		stale := err == nil && sync.ShouldImport(state, sync.Staleness(cfg))
		_ = d.Close()

		if stale {
			_, _ = sync.RunPull(entry.RepoPath)
		}
	}
}

// CrossRepoSessions lists the most recent sessions across the given
// repositories (all registered ones when names is empty), newest first.
func CrossRepoSessions(names []string, limit int) ([]RepoSession, []string, error) {
	entries, err := ListRepos(names)
	if err != nil {
		return nil, nil, err
	}
	lazyPull(entries)

	var results []RepoSession
	warnings := forEachRepo(entries, func(d *db.DB, entry registry.Entry) error {
		sessions, err := d.ListSessions(limit)
		if err != nil {
			return err
		}
		for _, s := range sessions {
			results = append(results, RepoSession{
				RepoName: entry.RepoName,
				RepoPath: entry.RepoPath,
				Session:  s,
			})
		}
		return nil
	})

	sort.Slice(results, func(i, j int) bool {
		return results[i].Session.LastActivityAt > results[j].Session.LastActivityAt
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, warnings, nil
}

// CrossRepoSearch searches turn text across the given repositories. Each
// repository is over-fetched so a single chatty repo cannot crowd out hits
// that would survive the global sort.
func CrossRepoSearch(query string, names []string, limit int) ([]RepoTurn, []string, error) {
	entries, err := ListRepos(names)
	if err != nil {
		return nil, nil, err
	}
	lazyPull(entries)

	perRepo := limit * 2
	var results []RepoTurn
	warnings := forEachRepo(entries, func(d *db.DB, entry registry.Entry) error {
		turns, err := d.SearchTurns(query, "", perRepo)
		if err != nil {
			return err
		}
		for _, t := range turns {
			results = append(results, RepoTurn{
				RepoName: entry.RepoName,
				RepoPath: entry.RepoPath,
				Turn:     t,
			})
		}
		return nil
	})

	sort.Slice(results, func(i, j int) bool {
		return results[i].Turn.Timestamp > results[j].Turn.Timestamp
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, warnings, nil
}

// RefreshCounts recomputes the cached session/turn counts for one
// repository in the registry.
func RefreshCounts(repoPath string) error {
	d, err := db.OpenRepo(repoPath)
	if err != nil {
		return err
	}
	defer d.Close()

	sessions, err := d.CountSessions()
	if err != nil {
		return err
	}
	turns, err := d.CountTurns()
	if err != nil {
		return err
	}

	reg, err := registry.OpenDefault()
	if err != nil {
		return err
	}
	defer reg.Close()
	return reg.UpdateCounts(repoPath, sessions, turns)
}
