// Package presenter provides consistent CLI output for skillctl: status
// messages, confirmation prompts, skill tables and conflict reports, with
// color support and quiet mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/jingkaihe/skillctl/pkg/conflicts"
	skilltypes "github.com/jingkaihe/skillctl/pkg/types/skills"
)

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Confirm(question string) bool
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// TerminalPresenter implements Presenter for terminal output
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       io.Reader
	colorMode   ColorMode
	quiet       bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto lets the color package detect terminal support
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// New creates a TerminalPresenter writing to stdout and stderr
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom settings
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	presenter := &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		input:       os.Stdin,
		colorMode:   colorMode,
	}

	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	case ColorAuto:
	}

	return presenter
}

// SetInput replaces the reader used by Confirm
func (p *TerminalPresenter) SetInput(r io.Reader) {
	p.input = r
}

func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch os.Getenv("SKILLCTL_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error displays an error message to stderr
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
	} else {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
	}
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays a section header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	headerColor := color.New(color.Bold)
	headerColor.Fprintf(p.output, "%s\n", title)
	headerColor.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Confirm asks a yes/no question. Anything but y or yes is a no.
func (p *TerminalPresenter) Confirm(question string) bool {
	color.New(color.FgCyan).Fprintf(p.output, "%s [y/N]: ", question)

	response, err := bufio.NewReader(p.input).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

// Skills renders one row per skill. With long set, every installation is
// listed beneath its skill.
func (p *TerminalPresenter) Skills(skills []*skilltypes.Skill, long bool) {
	if len(skills) == 0 {
		p.Info("No skills found")
		return
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tAGENTS\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-----\t------\t-----------")
	for _, skill := range skills {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			skill.Metadata.Name, skillState(skill), agentList(skill), truncate(skill.Metadata.Description, 60))
		if !long {
			continue
		}
		for _, inst := range skill.Installations {
			target := ""
			if inst.IsSymlink() {
				target = " -> " + inst.SymlinkTarget
			}
			fmt.Fprintf(w, "  %s/%s\t%s\t\t%s%s\n", inst.Agent, inst.Scope, inst.Link, inst.Path, target)
		}
	}
	w.Flush()
}

// Conflicts renders each conflict with its locations. Error conflicts are
// highlighted in red, informational ones in faint text.
func (p *TerminalPresenter) Conflicts(cs []conflicts.Conflict) {
	for _, c := range cs {
		heading := color.New(color.Faint)
		label := "[INFO]"
		if c.IsError() {
			heading = color.New(color.FgRed, color.Bold)
			label = "[ERROR]"
		}
		heading.Fprintf(p.output, "%s %s: %s\n", label, c.SkillName, c.Kind)
		for _, loc := range c.Locations {
			state := "unmanaged"
			if loc.IsManaged {
				state = "managed -> " + loc.RepoPath
			}
			fmt.Fprintf(p.output, "    %s/%s  %s  (%s)\n", loc.Agent, loc.Scope, loc.Path, state)
		}
	}
}

// ScanErrors lists entries that could not be scanned
func (p *TerminalPresenter) ScanErrors(errs []skilltypes.ScanError) {
	if p.quiet || len(errs) == 0 {
		return
	}
	warn := color.New(color.FgYellow)
	for _, e := range errs {
		warn.Fprintf(p.output, "⚠ %s: %s\n", e.Path, e.Message)
	}
}

func skillState(skill *skilltypes.Skill) string {
	if skill.IsManaged {
		return "managed"
	}
	return "unmanaged"
}

func agentList(skill *skilltypes.Skill) string {
	seen := make(map[skilltypes.Agent]bool)
	var names []string
	for _, inst := range skill.Installations {
		if seen[inst.Agent] {
			continue
		}
		seen[inst.Agent] = true
		names = append(names, inst.Agent.String())
	}
	return strings.Join(names, ",")
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

var defaultPresenter = New()

// Default returns the process-wide presenter
func Default() *TerminalPresenter {
	return defaultPresenter
}

// Error displays an error message using the default presenter instance.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success displays a success message using the default presenter instance.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning displays a warning message using the default presenter instance.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter instance.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section displays a section header using the default presenter instance.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Confirm asks a yes/no question using the default presenter instance.
func Confirm(question string) bool {
	return defaultPresenter.Confirm(question)
}

// Separator displays a visual separator using the default presenter instance.
func Separator() {
	defaultPresenter.Separator()
}

// SetQuiet enables or disables quiet mode for the default presenter instance.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether quiet mode is enabled for the default presenter instance.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
