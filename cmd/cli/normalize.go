package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"schoolsite/pkg/cms"
)

func normalizeCmd(g *globals) *cobra.Command {
	var origin, variants string
	cmd := &cobra.Command{
		Use:   "normalize <file|->",
		Short: "Print a CMS payload with rows flattened and media resolved to URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			var payload any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			if origin == "" {
				if cfg, err := g.load(); err == nil {
					origin = cfg.CMS.MediaBase()
				}
			}
			return printJSON(cmd.OutOrStdout(), normalizePayload(payload, resolver(origin, variants)))
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "media origin for relative upload URLs")
	cmd.Flags().StringVar(&variants, "variants", "", "comma separated image format preference, e.g. large,medium")
	return cmd
}

func resolver(origin, variants string) *cms.MediaResolver {
	var vs []string
	for _, v := range strings.Split(variants, ",") {
		if v = strings.TrimSpace(v); v != "" {
			vs = append(vs, v)
		}
	}
	return cms.NewMediaResolver(origin, vs...)
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// normalizePayload unwraps a list or item envelope and normalizes its rows.
func normalizePayload(payload any, m *cms.MediaResolver) any {
	env := cms.AsRow(payload)
	if env == nil {
		return normalizeValue(payload, m)
	}
	data, ok := env["data"]
	if !ok {
		return normalizeValue(payload, m)
	}
	if _, isList := data.([]any); isList {
		rows := cms.ListRows(payload)
		out := make([]any, 0, len(rows))
		for _, r := range rows {
			out = append(out, normalizeValue(r, m))
		}
		return out
	}
	if row := cms.ItemRow(payload); row != nil {
		return normalizeValue(row, m)
	}
	return nil
}

// normalizeValue flattens rows, unwraps relation envelopes and replaces
// media assets with their resolved URL.
func normalizeValue(v any, m *cms.MediaResolver) any {
	switch t := v.(type) {
	case cms.Row:
		return normalizeValue(map[string]any(t), m)
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, normalizeValue(e, m))
		}
		return out
	case map[string]any:
		if inner, wrapped := t["data"]; wrapped && len(t) <= 2 {
			if inner == nil {
				return nil
			}
			return normalizeValue(inner, m)
		}
		row := cms.Row(t).Flatten()
		if isMedia(row) {
			if u, ok := m.URL(row); ok {
				return u
			}
		}
		out := make(map[string]any, len(row))
		for k, fv := range row {
			out[k] = normalizeValue(fv, m)
		}
		return out
	}
	return v
}

func isMedia(row cms.Row) bool {
	if row.String("url") == "" {
		return false
	}
	_, mime := row["mime"]
	_, formats := row["formats"]
	_, hash := row["hash"]
	return mime || formats || hash
}
