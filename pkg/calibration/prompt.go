package calibration

import (
	"io"

	"github.com/fatih/color"
)

// Prompter tells the operator what to do next.
type Prompter interface {
	Prompt(Stage)
	Report(Profile)
}

type NopPrompter struct{}

func (NopPrompter) Prompt(Stage)   {}
func (NopPrompter) Report(Profile) {}

// ConsolePrompter writes highlighted instructions to a terminal.
type ConsolePrompter struct {
	w      io.Writer
	prompt *color.Color
	value  *color.Color
	done   *color.Color
}

func NewConsolePrompter(w io.Writer) *ConsolePrompter {
	return &ConsolePrompter{
		w:      w,
		prompt: color.New(color.FgYellow, color.Bold),
		value:  color.New(color.FgCyan),
		done:   color.New(color.FgGreen, color.Bold),
	}
}

func (c *ConsolePrompter) Prompt(s Stage) {
	switch s := s.(type) {
	case Calibrating:
		_, _ = c.prompt.Fprintf(c.w, "Please align the sensor with the %s color sample and press the button to calibrate.\n", s.Color.Prompt())
	case Done:
		_, _ = c.done.Fprintln(c.w, "Calibration done. You can now start detecting colors.")
	}
}

func (c *ConsolePrompter) Report(p Profile) {
	_, _ = c.value.Fprintln(c.w, "------------------------------------------------")
	_, _ = c.value.Fprintf(c.w, "Average Red Frequency: %d\n", p.Red)
	_, _ = c.value.Fprintf(c.w, "Average Green Frequency: %d\n", p.Green)
	_, _ = c.value.Fprintf(c.w, "Average Blue Frequency: %d\n", p.Blue)
	_, _ = c.value.Fprintln(c.w, "------------------------------------------------")
}
