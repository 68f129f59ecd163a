package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/laskarbuah/freelance-portal/internal/cli/client"
)

// Prompter asks the user for missing input
type Prompter interface {
	KodeUser() (string, error)
	Password() (string, error)
	SelectAttendance(rows []client.Record) (int, error)
}

var errNonInteractive = errors.New("not a terminal")

// terminalPrompter prompts on the controlling terminal
type terminalPrompter struct{}

func (terminalPrompter) KodeUser() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNonInteractive
	}

	prompt := promptui.Prompt{
		Label: "Kode User",
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("kode user is required")
			}
			return nil
		},
	}

	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt cancelled: %w", err)
	}
	return strings.TrimSpace(value), nil
}

func (terminalPrompter) Password() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNonInteractive
	}

	fmt.Fprint(os.Stderr, "Password: ")
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

type attendanceOption struct {
	Label string
	ID    int
}

func (terminalPrompter) SelectAttendance(rows []client.Record) (int, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return 0, errNonInteractive
	}

	options := make([]attendanceOption, 0, len(rows))
	for _, row := range rows {
		id, ok := recordInt(row, "id_absen")
		if !ok {
			continue
		}
		options = append(options, attendanceOption{Label: describeAttendance(row), ID: id})
	}
	if len(options) == 0 {
		return 0, errors.New("no attendance entries to choose from")
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select an attendance entry",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return 0, fmt.Errorf("selection cancelled: %w", err)
	}
	return options[index].ID, nil
}
