package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-s3trigger-go/bucketevents"
	"github.com/lex00/wetwire-s3trigger-go/internal/config"
	"github.com/lex00/wetwire-s3trigger-go/internal/validation"
)

// newWatchCmd creates the "watch" subcommand for re-synthesizing on changes.
func newWatchCmd(root *rootOptions) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-synthesize when the config or handler code changes",
		Long: `Watch monitors the config file and the handler code paths and
re-synthesizes the stack after each change.

The watch command:
- Watches the config file and every code path it names
- Checks the template structure on each change
- Synthesizes if the checks pass (unless --check-only)
- Debounces rapid changes to avoid excessive rebuilds

Examples:
    wetwire-trigger watch
    wetwire-trigger watch --check-only
    wetwire-trigger watch --debounce 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(root, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.checkOnly, "check-only", false, "Only check the template, skip synth")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "Debounce duration for rapid changes")
	cmd.Flags().StringVarP(&opts.outdir, "outdir", "o", "", "Output directory (default: app.outdir)")

	return cmd
}

type watchOptions struct {
	checkOnly bool
	debounce  time.Duration
	outdir    string
}

// watchTargets are the paths whose changes trigger a re-synth. Code paths
// that do not exist yet are listed in dirs and reached through parents,
// their nearest existing ancestors.
type watchTargets struct {
	files   map[string]bool
	dirs    []string
	parents []string
	ignore  string
}

// resolveWatchTargets lists the config file and the code paths named by cfg.
// A missing code path is watched from its nearest existing ancestor so it
// is picked up once created.
func resolveWatchTargets(configPath string, cfg *config.Config) (*watchTargets, error) {
	t := &watchTargets{files: make(map[string]bool)}

	if configPath == "" {
		for _, name := range []string{config.DefaultFileName, "wetwire-trigger.yml", "wetwire-trigger.json"} {
			if fileExists(name) {
				configPath = name
				break
			}
		}
	}

	if configPath != "" {
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		if fileExists(abs) {
			t.files[abs] = true
		}
	}

	var paths []string
	switch {
	case cfg.Construct.Variant == config.VariantPublisher && cfg.Construct.CodePath == "":
		paths = append(paths, bucketevents.DefaultCodePath)
	case cfg.Construct.CodePath != "":
		paths = append(paths, cfg.Construct.CodePath)
	}
	if h := cfg.Construct.Handler; h != nil && h.CodePath != "" {
		paths = append(paths, h.CodePath)
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir():
			t.dirs = append(t.dirs, abs)
		case err == nil:
			t.files[abs] = true
		default:
			t.dirs = append(t.dirs, abs)
			if parent := nearestExisting(abs); parent != "" {
				t.parents = append(t.parents, parent)
			}
		}
	}

	if cfg.App.Outdir != "" {
		outdir, err := filepath.Abs(cfg.App.Outdir)
		if err != nil {
			return nil, err
		}
		t.ignore = outdir
	}
	return t, nil
}

// relevant reports whether a change to path should trigger a re-synth.
func (t *watchTargets) relevant(path string) bool {
	if t.ignore != "" && within(path, t.ignore) {
		return false
	}
	if t.files[path] {
		return true
	}
	for _, dir := range t.dirs {
		if within(path, dir) {
			return true
		}
	}
	return false
}

// leadsTo reports whether dir is an ancestor of a code path.
func (t *watchTargets) leadsTo(dir string) bool {
	for _, target := range t.dirs {
		if target != dir && within(target, dir) {
			return true
		}
	}
	return false
}

// track adds watches for a newly created directory when it is a code path,
// lies inside one or leads to one. Subdirectories that already exist are
// followed so a path created in one step is not missed.
func (t *watchTargets) track(watcher *fsnotify.Watcher, dir string) error {
	if t.ignore != "" && within(dir, t.ignore) {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	for _, target := range t.dirs {
		if within(dir, target) {
			return addDirRecursive(watcher, dir, t.ignore)
		}
	}
	if !t.leadsTo(dir) {
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := t.track(watcher, filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// nearestExisting returns the closest ancestor of path that is a directory.
func nearestExisting(path string) string {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		if parent := filepath.Dir(dir); parent == dir {
			return ""
		}
	}
}

func within(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}

// runWatch monitors the watch targets and re-synthesizes on changes.
func runWatch(root *rootOptions, opts watchOptions, w io.Writer) error {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	if opts.outdir != "" {
		cfg.App.Outdir = opts.outdir
	}
	targets, err := resolveWatchTargets(root.configPath, cfg)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	// Files are watched through their directory so editors that replace the
	// file on save keep triggering events.
	watched := make(map[string]bool)
	for file := range targets.files {
		dir := filepath.Dir(file)
		if !watched[dir] {
			watched[dir] = true
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
		fmt.Fprintf(w, "Watching: %s\n", file)
	}
	for _, dir := range targets.dirs {
		if !fileExists(dir) {
			fmt.Fprintf(w, "Waiting for: %s\n", dir)
			continue
		}
		if err := addDirRecursive(watcher, dir, targets.ignore); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		fmt.Fprintf(w, "Watching: %s\n", dir)
	}
	for _, dir := range targets.parents {
		if !watched[dir] {
			watched[dir] = true
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintln(w, "Running initial synth...")
	runCheckAndSynth(root, opts, w)

	var debounceTimer *time.Timer
	rebuildChan := make(chan struct{}, 1)

	fmt.Fprintln(w, "\nWatching for changes... (Ctrl+C to stop)")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if err := targets.track(watcher, event.Name); err != nil {
					fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
				}
			}
			if !targets.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.debounce, func() {
				select {
				case rebuildChan <- struct{}{}:
				default:
				}
			})

		case <-rebuildChan:
			fmt.Fprintf(w, "\n[%s] Change detected, re-synthesizing...\n", time.Now().Format("15:04:05"))
			runCheckAndSynth(root, opts, w)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)

		case <-sigChan:
			fmt.Fprintln(w, "\nStopping watch...")
			return nil
		}
	}
}

// addDirRecursive adds a directory and all subdirectories to the watcher.
func addDirRecursive(watcher *fsnotify.Watcher, dir, ignore string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(path), ".") && path != dir {
			return filepath.SkipDir
		}
		if ignore != "" && within(path, ignore) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// runCheckAndSynth rebuilds the app, checks each template and synthesizes
// unless checkOnly is set. Errors are reported, not returned.
func runCheckAndSynth(root *rootOptions, opts watchOptions, w io.Writer) {
	_, app, err := root.loadApp(opts.outdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		return
	}

	for _, st := range app.Stacks() {
		t, err := st.Template()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
			return
		}
		result := validation.CheckStructure(t)
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "WARNING: %s\n", warn)
		}
		if !result.Passed {
			for _, e := range result.Errors {
				fmt.Fprintf(os.Stderr, "ERROR: %s\n", e)
			}
			fmt.Fprintln(w, "Check failed, skipping synth")
			return
		}
	}
	fmt.Fprintln(w, "Check passed")

	if opts.checkOnly {
		return
	}

	assembly, err := app.Synth()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Synth error: %v\n", err)
		return
	}
	for _, s := range assembly.Stacks {
		fmt.Fprintf(w, "Synth successful, wrote %s (%d resources)\n", s.TemplateFile, len(s.Template.Resources))
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
