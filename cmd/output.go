package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// writeOutput renders v as indented JSON or as YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode json")
		}
		return nil
	case "yaml":
		// Go through JSON so raw geojson and data columns render as
		// structures instead of byte lists.
		b, err := json.Marshal(v)
		if err != nil {
			return eris.Wrap(err, "encode json")
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			return eris.Wrap(err, "decode json")
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return nil
	default:
		return eris.Errorf("unknown output format %q (json, yaml)", format)
	}
}
