package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laskarbuah/freelance-portal/internal/cli/client"
	"github.com/laskarbuah/freelance-portal/internal/portal"
)

// NewAttendanceCmd creates the attendance command group
func NewAttendanceCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "attendance",
		Aliases: []string{"absen"},
		Short:   "List and submit attendance",
	}

	cmd.AddCommand(newAttendanceListCmd(d))
	cmd.AddCommand(newAttendanceSubmitCmd(d))

	return cmd
}

func newAttendanceListCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the attendance schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}

			rows, err := a.ctrl.AttendanceList(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list attendance: %w", err)
			}

			if len(rows) == 0 {
				fmt.Fprintln(d.Out, "No attendance entries found.")
				return nil
			}

			printRecords(d.Out, rows)
			return nil
		},
	}
}

func newAttendanceSubmitCmd(d *Deps) *cobra.Command {
	var (
		idAbsen   int
		photoPath string
		location  string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit attendance with a photo",
		Long: `Submit attendance with a photo.

The photo is uploaded first, then the attendance entry is recorded with its URL.
If --id is not provided, an interactive prompt lists today's entries.

Examples:
  $ portal attendance submit --photo selfie.jpg --map "-6.2,106.8"
  $ portal attendance submit --id 12 --photo selfie.jpg --map "-6.2,106.8"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}

			if idAbsen == 0 {
				rows, err := a.ctrl.AttendanceList(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list attendance: %w", err)
				}
				idAbsen, err = d.Prompter.SelectAttendance(rows)
				if errors.Is(err, errNonInteractive) {
					return fmt.Errorf("--id is required in non-interactive mode")
				}
				if err != nil {
					return err
				}
			}

			f, err := os.Open(photoPath)
			if err != nil {
				return fmt.Errorf("failed to open photo: %w", err)
			}
			defer f.Close()

			url, err := a.ctrl.SubmitAttendance(cmd.Context(), idAbsen, portal.Photo{Filename: filepath.Base(photoPath), Body: f}, location)
			if err != nil {
				return err
			}

			fmt.Fprintln(d.Out, "✓ Attendance submitted")
			fmt.Fprintf(d.Out, "  Photo: %s\n", url)
			return nil
		},
	}

	cmd.Flags().IntVar(&idAbsen, "id", 0, "Attendance entry id (id_absen)")
	cmd.Flags().StringVar(&photoPath, "photo", "", "Path to the attendance photo")
	cmd.Flags().StringVar(&location, "map", "", "Location as \"lat,lng\"")
	cmd.MarkFlagRequired("photo")
	cmd.MarkFlagRequired("map")

	return cmd
}

// printRecords renders upstream objects as a table, id_absen first
func printRecords(out io.Writer, rows []client.Record) {
	columns := recordColumns(rows)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	rules := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = strings.ToUpper(c)
		rules[i] = strings.Repeat("─", len([]rune(c)))
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	fmt.Fprintln(w, strings.Join(rules, "\t"))

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = formatValue(row[c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	w.Flush()
}

func recordColumns(rows []client.Record) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] && k != "id_absen" {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	for _, row := range rows {
		if _, ok := row["id_absen"]; ok {
			return append([]string{"id_absen"}, columns...)
		}
	}
	return columns
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

// recordInt reads a numeric field decoded from JSON
func recordInt(row client.Record, key string) (int, bool) {
	switch v := row[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func describeAttendance(row client.Record) string {
	parts := []string{}
	if id, ok := recordInt(row, "id_absen"); ok {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	for _, k := range recordColumns([]client.Record{row}) {
		if k == "id_absen" {
			continue
		}
		parts = append(parts, formatValue(row[k]))
	}
	return strings.Join(parts, "  ")
}
