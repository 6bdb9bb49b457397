package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"forum-watch/internal/config"
	"forum-watch/internal/forum"
)

// chooseFunc показывает меню и возвращает выбранную строку
type chooseFunc func(prompt string, options []string) (string, error)

func interactiveChoose(prompt string, options []string) (string, error) {
	return pterm.DefaultInteractiveSelect.
		WithOptions(options).
		WithDefaultText(prompt).
		Show()
}

func isInteractive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

// resolveTarget берёт раздел и сортировку из конфига, недостающее
// спрашивает в меню. Без терминала отсутствие значения ошибка.
func resolveTarget(cfg *config.Config, interactive bool, choose chooseFunc) (forum.Section, forum.Sort, error) {
	var (
		section forum.Section
		sort    forum.Sort
		err     error
	)

	if cfg.Listing.Section != "" {
		section, err = forum.ParseSection(cfg.Listing.Section)
	} else {
		section, err = chooseSection(interactive, choose)
	}
	if err != nil {
		return 0, 0, err
	}

	if cfg.Listing.Sort != "" {
		sort, err = forum.ParseSort(cfg.Listing.Sort)
	} else {
		sort, err = chooseSort(interactive, choose)
	}
	if err != nil {
		return 0, 0, err
	}

	return section, sort, nil
}

func chooseSection(interactive bool, choose chooseFunc) (forum.Section, error) {
	if !interactive {
		return 0, fmt.Errorf("section is not set: use --section or listing.section")
	}

	var labels []string
	for _, s := range forum.Sections() {
		labels = append(labels, s.Label())
	}

	picked, err := choose("請選擇看板", labels)
	if err != nil {
		return 0, fmt.Errorf("section selection failed: %w", err)
	}
	return forum.ParseSection(picked)
}

func chooseSort(interactive bool, choose chooseFunc) (forum.Sort, error) {
	if !interactive {
		return 0, fmt.Errorf("sort is not set: use --sort or listing.sort")
	}

	var labels []string
	for _, s := range forum.Sorts() {
		labels = append(labels, s.Label())
	}

	picked, err := choose("請選擇排序依據", labels)
	if err != nil {
		return 0, fmt.Errorf("sort selection failed: %w", err)
	}
	return forum.ParseSort(picked)
}
