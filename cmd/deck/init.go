package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zpdzap/devdeck/internal/config"
	"github.com/zpdzap/devdeck/internal/gh"
	"github.com/zpdzap/devdeck/internal/machine"
	"github.com/zpdzap/devdeck/internal/scanner"
	"github.com/zpdzap/devdeck/internal/store"
	"github.com/zpdzap/devdeck/internal/syncrepo"
)

func runInit(ctx context.Context, e *env, in io.Reader, out io.Writer) error {
	hub := gh.CLI{}
	if !hub.CheckAuth(ctx) {
		return errors.New("gh is not authenticated; run `gh auth login` first")
	}

	if !config.Exists(e.dir) {
		if err := config.Save(e.dir, e.cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	id, err := machine.GetOrCreate(e.dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Machine id: %s\n", id)

	repo := syncrepo.New(filepath.Join(e.dir, config.SyncDir), e.logger)
	fmt.Fprintln(out, "Setting up sync repo...")
	if err := repo.Init(ctx, hub); err != nil {
		return fmt.Errorf("sync init: %w", err)
	}

	st, err := store.Open(repo.StorePath())
	if err != nil {
		return err
	}

	reader := bufio.NewReader(in)
	if ask(reader, out, "Scan for existing git repos? [y/N] ") == "y" {
		repos, err := scanHome()
		if err != nil {
			return err
		}
		added := importScanned(reader, out, st, id, repos)
		fmt.Fprintf(out, "Added %d projects\n", added)
	}

	if err := st.Save(); err != nil {
		return err
	}
	if err := repo.Push(ctx, "Update projects from "+id); err != nil {
		fmt.Fprintf(out, "Warning: sync push failed: %v\n", err)
	}

	fmt.Fprintln(out, "\nRun `deck` to launch the dashboard.")
	return nil
}

func importScanned(reader *bufio.Reader, out io.Writer, st *store.Store, id string, repos []scanner.Repo) int {
	if len(repos) == 0 {
		fmt.Fprintln(out, "No repositories found.")
		return 0
	}
	for i, r := range repos {
		fmt.Fprintf(out, "  %2d. %s\n", i+1, r.Path)
	}

	picked := parseSelection(ask(reader, out, "Import which? (numbers, all, none) "), len(repos))
	added := 0
	for _, i := range picked {
		r := repos[i]
		if err := st.Add(r.Name, r.RemoteURL); err != nil {
			fmt.Fprintf(out, "  skip %s: %v\n", r.Name, err)
			continue
		}
		if err := st.SetLocation(r.Name, id, r.Path); err != nil {
			fmt.Fprintf(out, "  skip %s: %v\n", r.Name, err)
			continue
		}
		added++
	}
	return added
}

func ask(reader *bufio.Reader, out io.Writer, prompt string) string {
	fmt.Fprint(out, prompt)
	line, _ := reader.ReadString('\n')
	return strings.ToLower(strings.TrimSpace(line))
}

// parseSelection turns "1 3,4", "all" or "none" into zero-based indexes below n.
// Out-of-range and repeated numbers are ignored.
func parseSelection(input string, n int) []int {
	input = strings.TrimSpace(strings.ToLower(input))
	switch input {
	case "", "none":
		return nil
	case "all":
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	seen := make(map[int]bool)
	var picked []int
	for _, field := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ' ' }) {
		num, err := strconv.Atoi(field)
		if err != nil || num < 1 || num > n || seen[num-1] {
			continue
		}
		seen[num-1] = true
		picked = append(picked, num-1)
	}
	return picked
}
