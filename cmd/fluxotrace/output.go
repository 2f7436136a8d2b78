package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/fluxotrace"
	"github.com/petrijr/fluxotrace/cmd/fluxotrace/ui"
	"github.com/petrijr/fluxotrace/pkg/api"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// report is the machine-readable output of replay and show.
type report struct {
	Run         string           `json:"run,omitempty" yaml:"run,omitempty"`
	Frame       int              `json:"frame" yaml:"frame"`
	Events      int              `json:"events" yaml:"events"`
	Timeline    *api.Timeline    `json:"timeline" yaml:"timeline"`
	Diagnostics []api.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func writeReport(w io.Writer, format string, r report) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		if r.Run != "" {
			fmt.Fprintln(w, ui.KeyValues("", ui.KV("Run", r.Run), ui.KV("Frame", fmt.Sprintf("%d/%d", r.Frame, r.Events))))
		} else {
			fmt.Fprintln(w, ui.KeyValues("", ui.KV("Frame", fmt.Sprintf("%d/%d", r.Frame, r.Events))))
		}
		fmt.Fprint(w, ui.Timeline(r.Timeline))
		fmt.Fprint(w, ui.Diagnostics(r.Diagnostics))
		return nil
	default:
		return validateFormat(format)
	}
}

// readEvents decodes a history file, or stdin when path is "-".
func readEvents(in io.Reader, path string) ([]api.RawEvent, error) {
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}
	events, err := fluxotrace.DecodeEvents(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}
